package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/chat"
	"github.com/Zachkp/portfolio/internal/presence"
	"github.com/Zachkp/portfolio/internal/widget"
)

const widgetKey = "widget"

// widgetView is what the widget templates render.
type widgetView struct {
	Options    widget.Options
	Palette    widget.Palette
	Dark       bool
	Open       bool
	Input      string
	Transcript []chat.Message
	Presence   presence.State
}

func newWidgetView(w *widget.Widget) widgetView {
	return widgetView{
		Options:    w.Options,
		Palette:    w.Options.Palette(),
		Dark:       w.Options.IsDark(),
		Open:       w.IsOpen(),
		Input:      w.Input(),
		Transcript: w.Transcript(),
		Presence:   w.Presence(),
	}
}

// resolveWidget loads the session's widget or answers with an expired
// fragment.
func (s *Server) resolveWidget(c *gin.Context) {
	w := s.currentWidget(c)
	if w == nil {
		c.HTML(http.StatusNotFound, "session-expired.html", gin.H{
			"error": "Your chat session has expired.",
		})
		c.Abort()
		return
	}
	c.Set(widgetKey, w)
	c.Next()
}

func widgetFrom(c *gin.Context) *widget.Widget {
	return c.MustGet(widgetKey).(*widget.Widget)
}

func (s *Server) openPanel(c *gin.Context) {
	w := widgetFrom(c)
	w.Open()
	c.HTML(http.StatusOK, "chat-panel.html", newWidgetView(w))
}

func (s *Server) closePanel(c *gin.Context) {
	w := widgetFrom(c)
	w.Close()
	c.HTML(http.StatusOK, "character.html", newWidgetView(w))
}

func (s *Server) input(c *gin.Context) {
	widgetFrom(c).SetInput(c.PostForm("message"))
	c.Status(http.StatusNoContent)
}

// submit mirrors pressing Enter: the posted text becomes the pending input
// and is committed. Blank text is silently ignored.
func (s *Server) submit(c *gin.Context) {
	w := widgetFrom(c)
	if text, ok := c.GetPostForm("message"); ok {
		w.SetInput(text)
	}
	w.Submit()
	c.HTML(http.StatusOK, "transcript.html", newWidgetView(w))
}

func (s *Server) transcript(c *gin.Context) {
	c.HTML(http.StatusOK, "transcript.html", newWidgetView(widgetFrom(c)))
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, widgetFrom(c).Snapshot())
}

func (s *Server) events(c *gin.Context) {
	w := widgetFrom(c)
	events, cancel := w.Subscribe()
	defer cancel()

	// Headers go out with the first flush, before any SSEvent sets them.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
	c.Stream(func(_ io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Kind), e)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// unmount is the page-unload beacon. Unknown sessions are not an error.
func (s *Server) unmount(c *gin.Context) {
	if id, err := c.Cookie(widgetCookie); err == nil && id != "" {
		s.registry.Unmount(id)
	}
	c.SetCookie(widgetCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}
