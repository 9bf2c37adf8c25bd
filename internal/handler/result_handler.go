package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/examsaathi/backend/internal/engine"
	"github.com/examsaathi/backend/internal/model"
	"github.com/examsaathi/backend/internal/response"
	"github.com/examsaathi/backend/internal/service"
)

// ResultHandler renders the read-only results screen.
type ResultHandler struct{}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler() *ResultHandler {
	return &ResultHandler{}
}

// GetResult godoc
// GET /api/results?exam=&score=&total=
// Parses the result tuple from the query. Malformed values degrade to zero.
func (h *ResultHandler) GetResult(c *gin.Context) {
	res := engine.ParseResult(c.Request.URL.Query())

	examLabel := res.ExamID
	if exam, ok := model.FindExam(res.ExamID); ok {
		examLabel = exam.Label
	}

	retry := url.Values{}
	retry.Set(engine.ParamExam, res.ExamID)

	response.Success(c, http.StatusOK, gin.H{
		"result":     res,
		"exam_label": examLabel,
		"accuracy":   res.Accuracy(),
		"retry":      service.MockConfigPath + "?" + retry.Encode(),
	})
}
