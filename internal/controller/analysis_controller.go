package controller

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"muscleai_backend/internal/middleware"
	"muscleai_backend/internal/service"
	"muscleai_backend/pkg/apperror"
	"muscleai_backend/pkg/utils/validation"
)

// RecordAnalysis accepts a multipart form with an optional "photo" file, an
// optional "overall_score" and an optional JSON "result" field.
func (h *Handler) RecordAnalysis(c *fiber.Ctx) error {
	input := service.RecordAnalysisInput{}

	if v := c.FormValue("overall_score"); v != "" {
		score, err := strconv.Atoi(v)
		if err != nil {
			return apperror.Validation("overall_score must be a number")
		}
		input.OverallScore = &score
	}
	if v := c.FormValue("result"); v != "" {
		if err := json.Unmarshal([]byte(v), &input.Result); err != nil {
			return apperror.Validation("result must be a JSON object")
		}
	}

	file, err := c.FormFile("photo")
	switch {
	case err == nil:
		if err := validation.ValidateImage(file); err != nil {
			return apperror.Validation(err.Error())
		}
		f, err := file.Open()
		if err != nil {
			return apperror.Internal("", err)
		}
		defer f.Close()
		input.Photo = f
	case errors.Is(err, fasthttp.ErrMissingFile), errors.Is(err, fasthttp.ErrNoMultipartForm):
	default:
		return apperror.Validation("Invalid multipart form")
	}

	res, err := h.analyses.Record(c.UserContext(), middleware.UserID(c), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": res})
}

func (h *Handler) AnalysisStats(c *fiber.Ctx) error {
	stats, err := h.analyses.Stats(c.UserContext(), middleware.UserID(c), c.Query("date"))
	if err != nil {
		return err
	}
	return data(c, stats)
}
