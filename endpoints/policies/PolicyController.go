package policies

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.nhat.io/otelsql/attribute"

	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/models"
)

var errPolicyNotFound = errors.New("policy not found")

func RegisterController(rg *gin.RouterGroup) {
	g := rg.Group("/policies")

	g.GET("", ListPolicies)
	g.GET("/new", NewPolicy)
	g.POST("/new", CreatePolicy)
	g.GET("/:id", ViewPolicy)
	g.GET("/:id/edit", EditPolicy)
	g.POST("/:id/edit", UpdatePolicy)
	g.GET("/:id/delete", ConfirmDelete)
	g.POST("/:id/delete", DeletePolicy)
}

func listPolicies(rt *kernel.RequestRuntime) ([]models.Policy, error) {
	rt.NewChildTracer("policies.list").Advance()

	policies, err := rt.Backend.ListPolicies(rt.SpanContext)
	if err != nil {
		return nil, rt.MakeError(err)
	}
	rt.Span.SetAttributes(attribute.KeyValue("api.policies", len(policies)))

	rt.EndBlock()
	return policies, nil
}

// findPolicy resolves :id against the listing; the API has no single-record read.
func findPolicy(rt *kernel.RequestRuntime, id string) (*models.Policy, error) {
	policies, err := listPolicies(rt)
	if err != nil {
		return nil, err
	}
	for i := range policies {
		if policies[i].ID.String() == id {
			return &policies[i], nil
		}
	}
	return nil, errPolicyNotFound
}
