package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/console"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
)

func Search(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.NewChildTracer("search.handler").Advance()

	query := strings.TrimSpace(c.Query("q"))
	data := gin.H{"Title": "🔍 Search Policies", "Query": query}

	if query == "" {
		data["Info"] = "ℹ️ Enter a search term to find policies."
		rt.EndBlock()
		rt.HTML(http.StatusOK, "search.html", "search", data)
		return
	}

	rt.Span.SetAttributes(attribute.KeyValue("search.query", query))
	policies, err := rt.Backend.ListPolicies(rt.SpanContext)
	if err != nil {
		rt.MakeError(err)
		data["Error"] = fmt.Sprintf("❌ Failed to load policies: %s", backend.Message(err))
		rt.HTML(http.StatusOK, "search.html", "search", data)
		return
	}

	matches := console.Search(policies, query)
	rt.Span.SetAttributes(attribute.KeyValue("search.matches", len(matches)))
	if len(matches) == 0 {
		data["Info"] = "ℹ️ No policies found matching your search."
	} else {
		data["Success"] = fmt.Sprintf("✅ Found %d matching policies", len(matches))
		data["Policies"] = matches
	}

	rt.EndBlock()
	rt.HTML(http.StatusOK, "search.html", "search", data)
}
