package policies

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/console"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/models"
)

func renderEdit(rt *kernel.RequestRuntime, code int, policy *models.Policy, form console.PolicyForm, extra gin.H) {
	data := gin.H{
		"Title":  fmt.Sprintf("✏️ Edit '%s'", policy.Name),
		"Policy": policy,
		"Form":   form,
		"Types":  models.PolicyTypes,
	}
	for k, v := range extra {
		data[k] = v
	}
	rt.HTML(code, "edit.html", "policies", data)
}

func EditPolicy(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)

	policy, err := findPolicy(rt, c.Param("id"))
	if err != nil {
		renderLookupError(rt, err)
		return
	}

	renderEdit(rt, http.StatusOK, policy, console.FormFromPolicy(policy), nil)
}

func UpdatePolicy(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)

	policy, err := findPolicy(rt, c.Param("id"))
	if err != nil {
		renderLookupError(rt, err)
		return
	}

	rt.NewChildTracer("policies.update").Advance()
	rt.Span.SetAttributes(attribute.KeyValue("policy.id", policy.ID.String()))

	var form console.PolicyForm
	if err := c.ShouldBind(&form); err != nil {
		rt.MakeErrorf("could not read form: %w", err)
		renderEdit(rt, http.StatusBadRequest, policy, form, gin.H{"Problems": []string{err.Error()}})
		return
	}
	form.Normalize()

	if err := form.Validate(); err != nil {
		rt.EndBlock()
		renderEdit(rt, http.StatusUnprocessableEntity, policy, form, gin.H{"Problems": console.Problems(err)})
		return
	}

	if _, err := rt.Backend.UpdatePolicy(rt.SpanContext, policy.ID, form.UpdateFields()); err != nil {
		rt.MakeError(err)
		renderEdit(rt, http.StatusOK, policy, form, gin.H{
			"Error":  fmt.Sprintf("❌ Failed to update policy: %s", backend.Message(err)),
			"Detail": detailOf(err),
		})
		return
	}

	rt.EndBlock()
	rt.Flash(fmt.Sprintf("✅ Updated '%s'", form.Name))
	c.Redirect(http.StatusSeeOther, "/policies")
}
