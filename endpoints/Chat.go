package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.nhat.io/otelsql/attribute"

	"git.sr.ht/~aondrejcak/policy-console/assert"
	"git.sr.ht/~aondrejcak/policy-console/console"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/models"
)

func Index(c *gin.Context) {
	c.Redirect(http.StatusFound, "/chat")
}

func ChatPage(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	assert.NotNil(rt.Session, "session != nil")

	rt.NewChildTracer("chat.transcript").Advance()
	stored, err := rt.Store.Messages(rt.SpanContext, rt.Session.ID)
	if err != nil {
		rt.E(http.StatusInternalServerError, fmt.Errorf("could not load chat transcript: %w", err))
		return
	}
	rt.Span.SetAttributes(attribute.KeyValue("chat.messages", len(stored)))
	rt.EndBlock()

	rt.HTML(http.StatusOK, "chat.html", "chat", gin.H{
		"Title":        "🤖 AI Policy Assistant",
		"Messages":     console.Transcript(stored),
		"QuickActions": console.QuickActions,
		"Examples":     console.ExampleCommands,
		"FileTypes":    console.AllowedFileTypes,
	})
}

// ChatSend runs one message, typed or from a quick action button, through the
// assistant and stores both sides of the exchange.
func ChatSend(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	assert.NotNil(rt.Session, "session != nil")

	rt.NewChildTracer("chat.send").Advance()

	// read first, the upload cap has to be in place before the form is parsed
	files, err := rt.Uploads("files", console.MaxUploadBytes)
	if errors.Is(err, kernel.ErrUploadTooLarge) {
		rt.EndBlock()
		rt.Flash(fmt.Sprintf("❌ %s", console.ErrUploadTooLarge))
		c.Redirect(http.StatusSeeOther, "/chat")
		return
	}

	text := strings.TrimSpace(c.PostForm("message"))
	if quick, ok := console.QuickPrompt(c.PostForm("quick")); ok {
		text = quick
	}
	if text == "" {
		rt.EndBlock()
		c.Redirect(http.StatusSeeOther, "/chat")
		return
	}

	var answer string
	if err == nil {
		err = console.CheckFiles(files)
	}
	if err != nil {
		answer = fmt.Sprintf("❌ %s", err)
	} else {
		rt.Span.SetAttributes(attribute.KeyValue("chat.attachments", len(files)))
		answer = console.NewAssistant(rt.Backend).Handle(rt.SpanContext, rt.Session, text, files)
	}

	if err := rt.Store.AppendMessages(rt.SpanContext, rt.Session.ID,
		models.ChatMessage{Role: models.ROLE_USER, Content: text},
		models.ChatMessage{Role: models.ROLE_ASSISTANT, Content: answer},
	); err != nil {
		rt.E(http.StatusInternalServerError, fmt.Errorf("could not store chat messages: %w", err))
		return
	}
	if err := rt.SaveSession(); err != nil {
		log.Warn().Err(err).Msg("could not save last results")
	}

	rt.EndBlock()
	c.Redirect(http.StatusSeeOther, "/chat#latest")
}
