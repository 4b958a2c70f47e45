package policies

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/pretty"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
)

func ListPolicies(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)

	data := gin.H{"Title": "📋 All Policies"}
	policies, err := listPolicies(rt)
	if err != nil {
		data["Error"] = fmt.Sprintf("❌ Failed to load policies: %s", backend.Message(err))
	} else {
		data["Success"] = fmt.Sprintf("✅ Found %d policies", len(policies))
		data["Policies"] = policies
	}

	rt.HTML(http.StatusOK, "policies.html", "policies", data)
}

func ViewPolicy(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)

	policy, err := findPolicy(rt, c.Param("id"))
	if err != nil {
		renderLookupError(rt, err)
		return
	}

	raw := []byte(policy.Raw)
	if len(raw) == 0 {
		if raw, err = json.Marshal(policy); err != nil {
			rt.E(http.StatusInternalServerError, fmt.Errorf("could not encode policy: %w", err))
			return
		}
	}

	rt.HTML(http.StatusOK, "policy.html", "policies", gin.H{
		"Title":  fmt.Sprintf("📄 %s - Details", policy.Name),
		"Policy": policy,
		"JSON":   strings.TrimSpace(string(pretty.Pretty(raw))),
	})
}

// Unknown ids get the 404 page, backend failures are shown inline.
func renderLookupError(rt *kernel.RequestRuntime, err error) {
	if errors.Is(err, errPolicyNotFound) {
		rt.HTML(http.StatusNotFound, "404.html", "policies", gin.H{
			"Title":   "Policy not found",
			"Message": fmt.Sprintf("No policy with id %q.", rt.RequestContext.Param("id")),
		})
		return
	}
	rt.HTML(http.StatusBadGateway, "policies.html", "policies", gin.H{
		"Title": "📋 All Policies",
		"Error": fmt.Sprintf("❌ Failed to load policies: %s", backend.Message(err)),
	})
}
