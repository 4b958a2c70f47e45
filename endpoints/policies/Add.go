package policies

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.nhat.io/otelsql/attribute"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/console"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/models"
)

var now = time.Now

func renderAdd(rt *kernel.RequestRuntime, code int, form console.PolicyForm, extra gin.H) {
	data := gin.H{
		"Title":       "➕ Add New Policy",
		"Form":        form,
		"Types":       models.PolicyTypes,
		"FileTypes":   console.AllowedFileTypes,
		"MaxUpload":   console.MaxUploadBytes,
		"LastCreated": "",
	}
	if rt.Session != nil && rt.Session.PolicyCreated {
		data["LastCreated"] = rt.Session.LastPolicyName
	}
	for k, v := range extra {
		data[k] = v
	}
	rt.HTML(code, "add.html", "add", data)
}

func NewPolicy(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)

	if c.Query("another") != "" && rt.Session != nil && rt.Session.PolicyCreated {
		rt.Session.PolicyCreated = false
		if err := rt.SaveSession(); err != nil {
			log.Warn().Err(err).Msg("could not reset policy flag")
		}
	}

	renderAdd(rt, http.StatusOK, console.NewPolicyForm(now()), nil)
}

// CreatePolicy validates the add form, optionally warns about a duplicate
// name, then sends exactly one POST /policies.
func CreatePolicy(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.NewChildTracer("policies.create").Advance()

	// before binding, the upload cap has to be in place when the body is parsed
	files, uploadErr := rt.Uploads("files", console.MaxUploadBytes)
	if errors.Is(uploadErr, kernel.ErrUploadTooLarge) {
		rt.MakeError(uploadErr)
		renderAdd(rt, http.StatusRequestEntityTooLarge, console.NewPolicyForm(now()),
			gin.H{"Problems": []string{console.ErrUploadTooLarge.Error()}})
		return
	}

	var form console.PolicyForm
	if err := c.ShouldBind(&form); err != nil {
		rt.MakeErrorf("could not read form: %w", err)
		renderAdd(rt, http.StatusBadRequest, form, gin.H{"Problems": []string{err.Error()}})
		return
	}
	form.Normalize()

	if uploadErr != nil {
		rt.MakeError(uploadErr)
		renderAdd(rt, http.StatusBadRequest, form, gin.H{"Problems": []string{uploadErr.Error()}})
		return
	}
	form.Files = files

	if err := form.Validate(); err != nil {
		rt.EndBlock()
		renderAdd(rt, http.StatusUnprocessableEntity, form, gin.H{"Problems": console.Problems(err)})
		return
	}

	data := gin.H{"Preview": form.Preview()}

	if form.CheckDuplicate {
		if dup := findDuplicate(rt, form.Name); dup != nil {
			data["Duplicate"] = dup
		}
	}

	rt.Span.SetAttributes(
		attribute.KeyValue("policy.type", form.Type),
		attribute.KeyValue("policy.files", len(form.Files)),
	)
	res, err := rt.Backend.CreatePolicy(rt.SpanContext, form.Fields(), form.Files)
	if err != nil {
		rt.MakeError(err)
		status := backend.StatusCode(err)
		data["Failure"] = failureHeadline(status)
		data["Detail"] = detailOf(err)
		data["Hint"] = failureHint(status)
		renderAdd(rt, http.StatusOK, form, data)
		return
	}

	msg := res.Field("message")
	if msg == "" {
		msg = fmt.Sprintf("Policy '%s' created successfully.", form.Name)
	}
	data["Created"] = fmt.Sprintf("✅ %s", msg)
	data["Response"] = res.Pretty()

	rt.Session.PolicyCreated = true
	rt.Session.LastPolicyName = form.Name
	if err := rt.SaveSession(); err != nil {
		log.Warn().Err(err).Msg("could not store created policy")
	}

	rt.EndBlock()
	renderAdd(rt, http.StatusOK, form, data)
}

// findDuplicate is best effort: a failed listing skips the warning.
func findDuplicate(rt *kernel.RequestRuntime, name string) *models.Policy {
	policies, err := listPolicies(rt)
	if err != nil {
		log.Debug().Err(err).Msg("duplicate check skipped")
		return nil
	}
	return console.Duplicate(policies, name)
}

func failureHeadline(status int) string {
	if status == 0 {
		return "❌ Failed to create policy (HTTP Unknown)"
	}
	return fmt.Sprintf("❌ Failed to create policy (HTTP %d)", status)
}

func failureHint(status int) string {
	switch status {
	case http.StatusUnprocessableEntity:
		return "Tip: One or more required fields may be missing or invalid."
	case http.StatusInternalServerError:
		return "Tip: Server error. Check the policy API logs for the full traceback."
	default:
		return "Tip: Verify API_BASE_URL and that the backend is running."
	}
}

func detailOf(err error) string {
	var be *backend.Error
	if errors.As(err, &be) {
		if d := be.DetailText(); d != "" {
			return d
		}
		return be.Message
	}
	return err.Error()
}
