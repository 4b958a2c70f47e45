package endpoints

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"git.sr.ht/~aondrejcak/policy-console/backend"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/models"
)

type TypeCount struct {
	Type    string
	Count   int
	Percent int // bar width relative to the largest type
}

func typeBreakdown(stats *models.Stats) []TypeCount {
	rows := make([]TypeCount, 0, len(stats.PolicyTypes))
	largest := 0
	for t, n := range stats.PolicyTypes {
		rows = append(rows, TypeCount{Type: t, Count: n})
		if n > largest {
			largest = n
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Type < rows[j].Type })
	for i := range rows {
		if largest > 0 {
			rows[i].Percent = rows[i].Count * 100 / largest
		}
	}
	return rows
}

func Stats(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.NewChildTracer("stats.handler").Advance()

	data := gin.H{"Title": "📊 System Statistics"}

	stats, err := rt.Backend.Stats(rt.SpanContext)
	if err != nil {
		rt.MakeError(err)
		data["Error"] = fmt.Sprintf("❌ Failed to load statistics: %s", backend.Message(err))
		rt.HTML(http.StatusOK, "stats.html", "stats", data)
		return
	}

	data["Stats"] = stats
	data["Types"] = typeBreakdown(stats)
	rt.EndBlock()
	rt.HTML(http.StatusOK, "stats.html", "stats", data)
}
