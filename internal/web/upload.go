package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"banner-text-advisor/internal/brand"
	"banner-text-advisor/internal/imaging"
)

var errUnsupportedUpload = errors.New("unsupported file type: upload a PNG, JPEG or WebP image")

type upload struct {
	name string
	mime string
	data []byte
}

// readUpload returns nil without error when the field was not sent or the
// file is empty.
func readUpload(r *http.Request, field string) (*upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	mimeType := imaging.SniffMIME(header.Header.Get("Content-Type"), data)
	if !imaging.Allowed(mimeType) {
		return nil, errUnsupportedUpload
	}

	return &upload{name: header.Filename, mime: mimeType, data: data}, nil
}

type preparedImages struct {
	banner imaging.Image
	photo  *imaging.Info
}

// prepareImages normalises the banner and inspects the optional photo in
// parallel.
func prepareImages(ctx context.Context, banner, photo *upload) (preparedImages, error) {
	var out preparedImages

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := imaging.Normalize(banner.data)
		if err != nil {
			return fmt.Errorf("banner: %w", err)
		}
		out.banner = img
		return nil
	})
	if photo != nil {
		g.Go(func() error {
			info, err := imaging.Inspect(photo.data)
			if err != nil {
				return fmt.Errorf("photo: %w", err)
			}
			out.photo = &info
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return preparedImages{}, err
	}
	return out, nil
}

func brandFromForm(r *http.Request) brand.Info {
	return brand.Info{
		Name:      strings.TrimSpace(r.FormValue("brand_name")),
		Industry:  strings.TrimSpace(r.FormValue("industry")),
		Audience:  strings.TrimSpace(r.FormValue("target_audience")),
		Objective: strings.TrimSpace(r.FormValue("campaign_objective")),
	}
}

// parseUploadForm caps the body size and parses a multipart form. Plain
// url-encoded forms are accepted as well.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return fmt.Errorf("upload exceeds %d MB", s.maxUploadBytes>>20)
			}
			return fmt.Errorf("invalid multipart form: %w", err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("invalid form: %w", err)
	}
	return nil
}
