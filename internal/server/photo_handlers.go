package server

import (
	"io"

	"gymfix/internal/models"
	"gymfix/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadPhoto handles POST /api/photos. Accepts a multipart upload and
// returns the URL to reference from a fault report or confirmation.
// @Summary Upload photo evidence
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file true "Photo file"
// @Param kind formData string true "Photo kind (fault-reports or ticket-confirmations)"
// @Success 201 {object} object{url=string,thumbnail_url=string}
// @Failure 400 {object} object{error=string}
// @Router /photos [post]
func (s *Server) UploadPhoto(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Photo file is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	url, err := s.photoService.Upload(service.UploadPhotoInput{
		UserID:      userID,
		Kind:        c.FormValue("kind", service.PhotoKindFaultReport),
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url":           url,
		"thumbnail_url": s.photoService.ThumbnailURL(url),
	})
}

// ServePhoto handles GET /media/photos/:kind/:name. Photos carry
// content-addressed names, so aggressive client caching is safe.
func (s *Server) ServePhoto(c *fiber.Ctx) error {
	path, err := s.photoService.ResolveForServing(c.Params("kind"), c.Params("name"))
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.SendFile(path)
}
