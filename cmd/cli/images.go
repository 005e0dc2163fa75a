package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const thumbnailSize = 100

var dataURLPattern = regexp.MustCompile(`data:image/(jpeg|png|gif)`)

var (
	errUnsupportedImage = errors.New("Invalid image format. Only jpeg, png, gif are supported.")
	errOutsideAllowed   = errors.New("File path is outside the allowed directory.")
)

// storedImage is where an image and its thumbnail were written, as URLs under /static
type storedImage struct {
	ImageURL string
	IconURL  string
}

// parseDataURL splits a "data:image/<ext>;base64,<payload>" string
func parseDataURL(dataURL string) (string, []byte, error) {
	header, encoded, found := strings.Cut(dataURL, ",")
	if !found {
		return "", nil, fmt.Errorf("Invalid Base64 data: missing ',' separator")
	}

	match := dataURLPattern.FindStringSubmatch(header)
	if match == nil {
		return "", nil, errUnsupportedImage
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", nil, fmt.Errorf("Invalid Base64 data: %v", err)
	}

	return match[1], raw, nil
}

// resolveAllowedPath returns the absolute, symlink free form of path if it lies inside root
func resolveAllowedPath(root, path string) (string, error) {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve allowed directory: %w", err)
	}
	resolvedRoot, err = filepath.Abs(resolvedRoot)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideAllowed
	}

	return resolved, nil
}

// storeImage writes raw under staticDir/images and a bounded thumbnail under staticDir/icons
func storeImage(staticDir string, raw []byte) (*storedImage, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	ext := "." + format
	switch format {
	case "jpeg", "png", "gif":
	default:
		return nil, errUnsupportedImage
	}

	imageDir := filepath.Join(staticDir, "images")
	iconDir := filepath.Join(staticDir, "icons")
	for _, dir := range []string{imageDir, iconDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	name := uuid.New().String() + ext

	if err := os.WriteFile(filepath.Join(imageDir, name), raw, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	icon, err := os.Create(filepath.Join(iconDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail: %w", err)
	}
	defer icon.Close()

	if err := encodeImage(icon, thumbnail(img, thumbnailSize), format); err != nil {
		return nil, fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return &storedImage{
		ImageURL: "/static/images/" + name,
		IconURL:  "/static/icons/" + name,
	}, nil
}

// thumbnail scales img down to fit in a size x size box, keeping the aspect ratio.
// Images that already fit are returned unchanged.
func thumbnail(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= size && h <= size {
		return img
	}

	if w >= h {
		h = h * size / w
		w = size
	} else {
		w = w * size / h
		h = size
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
	}
}
