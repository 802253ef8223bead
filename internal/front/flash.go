package front

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	flashSuccess = "success"
	flashError   = "error"
)

// flash queues a message for the next rendered page.
func (p *pages) flash(c *gin.Context, kind, msg string) {
	s := sessions.Default(c)
	s.AddFlash(msg, kind)
	if err := s.Save(); err != nil {
		p.log.WithError(err).Warn("failed to save flash message")
	}
}

func (p *pages) takeFlashes(c *gin.Context) []Flash {
	s := sessions.Default(c)
	var out []Flash
	for _, kind := range []string{flashSuccess, flashError} {
		for _, m := range s.Flashes(kind) {
			if msg, ok := m.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := s.Save(); err != nil {
			p.log.WithError(err).Warn("failed to clear flash messages")
		}
	}
	return out
}
