package kernel

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"git.sr.ht/~aondrejcak/policy-console/models"
)

// Sidebar is the API status block shown on every console page.
type Sidebar struct {
	Online  bool
	Version string
	Stats   *models.Stats
}

func (rt *RequestRuntime) Sidebar() *Sidebar {
	rt.StepInto("sidebar")
	defer rt.EndBlock()

	sb := &Sidebar{}
	info, err := rt.Backend.Probe(rt.SpanContext)
	if err != nil {
		log.Debug().Err(err).Msg("api probe failed")
		return sb
	}
	sb.Online = true
	sb.Version = info.Version
	if sb.Version == "" {
		sb.Version = "Unknown"
	}

	if stats, err := rt.Backend.SidebarStats(rt.SpanContext); err == nil {
		sb.Stats = stats
	}
	return sb
}

// HTML renders a console page with the sidebar, the navigation state and the
// pending flash message.
func (rt *RequestRuntime) HTML(code int, name string, nav string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Nav"] = nav
	data["Sidebar"] = rt.Sidebar()
	data["Operator"] = rt.Operator
	data["AuthEnabled"] = rt.AppRuntime.AuthEnabled()

	if rt.Session != nil && rt.Session.Flash != "" {
		data["Flash"] = rt.Session.TakeFlash()
		if err := rt.SaveSession(); err != nil {
			log.Warn().Err(err).Msg("could not clear flash")
		}
	}

	rt.RequestContext.HTML(code, name, data)
}

// Flash stores a one-shot message shown on the next rendered page.
func (rt *RequestRuntime) Flash(msg string) {
	if rt.Session == nil {
		return
	}
	rt.Session.Flash = msg
	if err := rt.SaveSession(); err != nil {
		log.Warn().Err(err).Msg("could not store flash")
	}
}
