package policies

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
)

func ConfirmDelete(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)

	policy, err := findPolicy(rt, c.Param("id"))
	if err != nil {
		renderLookupError(rt, err)
		return
	}

	rt.HTML(http.StatusOK, "delete.html", "policies", gin.H{
		"Title":  fmt.Sprintf("⚠️ Confirm Delete '%s'", policy.Name),
		"Policy": policy,
	})
}

func DeletePolicy(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)

	policy, err := findPolicy(rt, c.Param("id"))
	if err != nil {
		renderLookupError(rt, err)
		return
	}

	rt.NewChildTracer("policies.delete").Advance()
	rt.Span.SetAttributes(attribute.KeyValue("policy.id", policy.ID.String()))

	if _, err := rt.Backend.DeletePolicy(rt.SpanContext, policy.ID); err != nil {
		rt.MakeError(err)
		rt.Flash(fmt.Sprintf("❌ Failed to delete: %s", backend.Message(err)))
	} else {
		rt.EndBlock()
		rt.Flash(fmt.Sprintf("✅ Deleted '%s'", policy.Name))
	}

	c.Redirect(http.StatusSeeOther, "/policies")
}
