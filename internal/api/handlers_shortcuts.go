package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lox/flowcal/internal/calibration"
)

type shortcutView struct {
	Experiment string    `json:"experiment"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"createdAt"`
}

type addShortcutRequest struct {
	Experiment string `json:"experiment" binding:"required"`
}

func (s *Server) handleListShortcuts(c *gin.Context) {
	user := userID(c)
	if user == "" {
		c.JSON(http.StatusOK, gin.H{"shortcuts": []shortcutView{}})
		return
	}

	shortcuts, err := s.store.Shortcuts(c.Request.Context(), user)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	out := make([]shortcutView, 0, len(shortcuts))
	for _, sc := range shortcuts {
		v := shortcutView{Experiment: sc.Experiment, CreatedAt: sc.CreatedAt}
		if f, err := calibration.Lookup(sc.Experiment); err == nil {
			v.Title = f.Schema().Title
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"shortcuts": out})
}

func (s *Server) handleAddShortcut(c *gin.Context) {
	user := userID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	var req addShortcutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := calibration.Lookup(req.Experiment)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.AddShortcut(c.Request.Context(), user, string(f.Schema().Experiment)); err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"experiment": f.Schema().Experiment, "title": f.Schema().Title})
}
