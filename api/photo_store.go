package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrFolderExists is returned by Reserve when the df folder is already taken
var ErrFolderExists = errors.New("df folder already exists")

// ErrOutsideRoot is returned for paths that escape the uploads root
var ErrOutsideRoot = errors.New("path is outside the uploads root")

const (
	picturesDir      = "pictures"
	defaultPhotoExt  = ".jpg"
	uploadsURLPrefix = "/static/files/uploads"
)

// PhotoUpload is one submitted photo
type PhotoUpload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// PhotoUploadsFromForm adapts multipart file headers
func PhotoUploadsFromForm(files []*multipart.FileHeader) []PhotoUpload {
	uploads := make([]PhotoUpload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, PhotoUpload{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

// PhotoStore keeps report photos on disk under <root>/<df_number>/pictures
type PhotoStore struct {
	root  string
	mkdir func(name string, perm os.FileMode) error
}

// NewPhotoStore creates a store rooted at root
func NewPhotoStore(root string) *PhotoStore {
	return &PhotoStore{root: root, mkdir: os.Mkdir}
}

// Root returns the uploads root directory
func (s *PhotoStore) Root() string {
	return s.root
}

func (s *PhotoStore) dfDir(dfNumber string) string {
	return filepath.Join(s.root, SanitizeFilename(dfNumber))
}

// Reserve creates the df folder and its pictures subfolder. Creation of the
// df folder is atomic: a second caller gets ErrFolderExists.
func (s *PhotoStore) Reserve(dfNumber string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create uploads root: %w", err)
	}
	dir := s.dfDir(dfNumber)
	if err := s.mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrFolderExists
		}
		return fmt.Errorf("create df folder: %w", err)
	}
	if err := s.mkdir(filepath.Join(dir, picturesDir), 0o755); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return fmt.Errorf("create pictures folder: %w (cleanup: %v)", err, rmErr)
		}
		return fmt.Errorf("create pictures folder: %w", err)
	}
	return nil
}

// PhotoName returns the stored name of the index-th photo (1-based) of a report
func PhotoName(dfNumber string, index int, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	ext = SanitizeFilename(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = defaultPhotoExt
	} else {
		ext = "." + ext
	}
	return SanitizeFilename(fmt.Sprintf("%s_%d%s", dfNumber, index, ext))
}

// Save writes the photos in submission order and returns their stored names
func (s *PhotoStore) Save(dfNumber string, photos []PhotoUpload) ([]string, error) {
	dir := filepath.Join(s.dfDir(dfNumber), picturesDir)
	names := make([]string, 0, len(photos))
	for i, photo := range photos {
		name := PhotoName(dfNumber, i+1, photo.Filename)
		if err := writePhoto(filepath.Join(dir, name), photo); err != nil {
			return names, fmt.Errorf("save photo %d: %w", i+1, err)
		}
		names = append(names, name)
	}
	return names, nil
}

func writePhoto(dst string, photo PhotoUpload) error {
	src, err := photo.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // #nosec G304 -- name is sanitized
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// List returns the sorted photo names of a report. A missing folder yields an empty list.
func (s *PhotoStore) List(dfNumber string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dfDir(dfNumber), picturesDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes the df folder with everything in it
func (s *PhotoStore) Remove(dfNumber string) error {
	if strings.TrimSpace(dfNumber) == "" {
		return nil
	}
	return os.RemoveAll(s.dfDir(dfNumber))
}

// Resolve maps a URL path below the uploads prefix to a file strictly inside the root
func (s *PhotoStore) Resolve(relPath string) (string, error) {
	clean := path.Clean("/" + relPath)
	if clean == "/" {
		return "", ErrOutsideRoot
	}
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// PhotoURL is the static route a stored photo is served from
func PhotoURL(dfNumber, name string) string {
	return path.Join(uploadsURLPrefix, dfNumber, picturesDir, name)
}

// SanitizeFilename keeps only [A-Za-z0-9._-] and strips leading dots
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
