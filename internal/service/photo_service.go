package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gymfix/internal/config"
	"gymfix/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	DefaultPhotoUploadDir       = "/tmp/gymfix/uploads/photos"
	DefaultPhotoMaxUploadSizeMB = 10

	// Thumbnails cap the longest side for ticket-list previews.
	thumbMaxSize     = 512
	thumbWebPQuality = 70

	// PhotoKindFaultReport holds photos attached to new fault reports.
	PhotoKindFaultReport = "fault-reports"
	// PhotoKindConfirmation holds the mandatory closure evidence photos.
	PhotoKindConfirmation = "ticket-confirmations"
)

// PhotoService stores uploaded evidence photos on disk and builds their
// serving URLs. Photos are content-addressed so re-uploads deduplicate.
type PhotoService struct {
	uploadDir          string
	maxUploadSizeBytes int64
}

type UploadPhotoInput struct {
	UserID      uint
	Kind        string
	Filename    string
	ContentType string
	Content     []byte
}

func NewPhotoService(cfg *config.Config) *PhotoService {
	uploadDir := DefaultPhotoUploadDir
	if cfg != nil && cfg.UploadDir != "" {
		uploadDir = cfg.UploadDir
	}
	return &PhotoService{
		uploadDir:          uploadDir,
		maxUploadSizeBytes: DefaultPhotoMaxUploadSizeMB * 1024 * 1024,
	}
}

// Upload validates and persists a photo, returning its serving URL.
func (s *PhotoService) Upload(in UploadPhotoInput) (string, error) {
	if in.UserID == 0 {
		return "", models.NewValidationError("Invalid user")
	}
	if in.Kind != PhotoKindFaultReport && in.Kind != PhotoKindConfirmation {
		return "", models.NewValidationError("Invalid photo kind")
	}
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	ext, ok := photoExtensionFor(detectedType)
	if !ok {
		return "", models.NewValidationError("Invalid image type")
	}

	hash := buildPhotoHash(in.UserID, in.Content)
	rel := filepath.ToSlash(filepath.Join(in.Kind, hash+ext))
	abs := filepath.Join(s.uploadDir, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := os.WriteFile(abs, in.Content, 0o600); err != nil {
		return "", models.NewInternalError(err)
	}

	// Best-effort: an undecodable file still serves at full size.
	if thumb, err := buildThumbnail(in.Content); err == nil {
		thumbPath := filepath.Join(s.uploadDir, in.Kind, hash+thumbSuffix)
		_ = os.WriteFile(thumbPath, thumb, 0o600)
	}

	return s.BuildPhotoURL(in.Kind, hash+ext), nil
}

const thumbSuffix = "_thumb.webp"

// ThumbnailURL returns the preview URL for a photo URL produced by Upload,
// or "" when the input is not one of ours.
func (s *PhotoService) ThumbnailURL(photoURL string) string {
	ext := filepath.Ext(photoURL)
	base := strings.TrimSuffix(photoURL, ext)
	if base == "" || ext == "" || !strings.HasPrefix(photoURL, "/media/photos/") {
		return ""
	}
	return base + thumbSuffix
}

func buildThumbnail(content []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty image")
	}
	if w > thumbMaxSize || h > thumbMaxSize {
		scale := float64(thumbMaxSize) / float64(w)
		if sh := float64(thumbMaxSize) / float64(h); sh < scale {
			scale = sh
		}
		newW, newH := int(float64(w)*scale), int(float64(h)*scale)
		if newW < 1 {
			newW = 1
		}
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
		src = dst
	}

	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, src, &webp.Options{Quality: thumbWebPQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ResolveForServing maps a kind/name pair back to the file on disk. Names
// are strictly content hashes plus extension, so traversal is rejected here.
func (s *PhotoService) ResolveForServing(kind, name string) (string, error) {
	if kind != PhotoKindFaultReport && kind != PhotoKindConfirmation {
		return "", models.NewValidationError("Invalid photo kind")
	}
	if !isValidPhotoName(name) {
		return "", models.NewValidationError("Invalid photo name")
	}
	fullPath := filepath.Join(s.uploadDir, kind, name)
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Photo", name)
		}
		return "", models.NewInternalError(err)
	}
	return fullPath, nil
}

func (s *PhotoService) BuildPhotoURL(kind, name string) string {
	return fmt.Sprintf("/media/photos/%s/%s", kind, name)
}

func photoExtensionFor(contentType string) (string, bool) {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/gif":
		return ".gif", true
	case "image/webp":
		return ".webp", true
	default:
		return "", false
	}
}

// isValidPhotoName checks for a lowercase hex hash plus a known extension,
// optionally with the thumbnail suffix.
func isValidPhotoName(name string) bool {
	var base string
	if strings.HasSuffix(name, thumbSuffix) {
		base = strings.TrimSuffix(name, thumbSuffix)
	} else {
		ext := filepath.Ext(name)
		switch ext {
		case ".jpg", ".png", ".gif", ".webp":
		default:
			return false
		}
		base = strings.TrimSuffix(name, ext)
	}
	if len(base) != 64 {
		return false
	}
	for _, c := range base {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func buildPhotoHash(userID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
