package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gabevillegas628/lettermanager-api/internal/models"
	appErrors "github.com/gabevillegas628/lettermanager-api/pkg/errors"
	"github.com/gabevillegas628/lettermanager-api/pkg/render"
)

type pdfLetterRepository interface {
	FindByID(ctx context.Context, id string) (*models.Letter, error)
	UpdatePDF(ctx context.Context, id, pdfPath string, generatedAt time.Time) error
}

type pdfRenderer interface {
	Render(content string, opts render.Options) ([]byte, error)
}

type pdfStorage interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	Delete(name string) error
}

type uploadReader interface {
	Read(name string) ([]byte, error)
}

type renderObserver interface {
	ObserveRenderDuration(seconds float64)
}

// PDFConfig carries rendering defaults.
type PDFConfig struct {
	DefaultFontSize  float64
	FallbackFontSize float64
	FontFamily       string
}

// PDFService materializes letter PDFs on demand and tracks their freshness
// against the letter content.
type PDFService struct {
	letters    pdfLetterRepository
	requests   letterRequestRepository
	professors variableProfessorReader
	renderer   pdfRenderer
	files      pdfStorage
	uploads    uploadReader
	metrics    renderObserver
	config     PDFConfig
	logger     *zap.Logger
}

// NewPDFService constructs a PDFService instance.
func NewPDFService(
	letters pdfLetterRepository,
	requests letterRequestRepository,
	professors variableProfessorReader,
	renderer pdfRenderer,
	files pdfStorage,
	uploads uploadReader,
	metrics renderObserver,
	config PDFConfig,
	logger *zap.Logger,
) *PDFService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFService{
		letters:    letters,
		requests:   requests,
		professors: professors,
		renderer:   renderer,
		files:      files,
		uploads:    uploads,
		metrics:    metrics,
		config:     config,
		logger:     logger,
	}
}

// Generate renders the letter to PDF, stores the artifact and records the
// generation timestamp. The previous artifact, if any, is removed afterwards.
func (s *PDFService) Generate(ctx context.Context, professorID, letterID string) (*models.Letter, error) {
	letter, professor, err := s.loadLetterWithProfessor(ctx, professorID, letterID)
	if err != nil {
		return nil, err
	}

	opts := s.buildOptions(professor)
	started := time.Now()
	data, err := s.renderer.Render(letter.Content, opts)
	if s.metrics != nil {
		s.metrics.ObserveRenderDuration(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRendering.Code, appErrors.ErrRendering.Status, "pdf rendering failed")
	}

	generatedAt := time.Now().UTC()
	name := fmt.Sprintf("%s_v%d_%d.pdf", letter.ID, letter.Version, generatedAt.Unix())
	if _, err := s.files.Save(name, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store pdf")
	}
	if err := s.letters.UpdatePDF(ctx, letter.ID, name, generatedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record pdf")
	}

	if letter.PDFPath != nil && *letter.PDFPath != name {
		if err := s.files.Delete(*letter.PDFPath); err != nil {
			s.logger.Warn("failed to remove previous pdf", zap.String("path", *letter.PDFPath), zap.Error(err))
		}
	}

	letter.PDFPath = &name
	letter.PDFGeneratedAt = &generatedAt
	return letter, nil
}

// Download returns the stored PDF bytes and a download filename. It serves
// whatever was last generated; Status tells the caller whether that is stale.
func (s *PDFService) Download(ctx context.Context, professorID, letterID string) ([]byte, string, error) {
	letter, request, err := s.loadOwnedLetter(ctx, professorID, letterID)
	if err != nil {
		return nil, "", err
	}
	if letter.PDFPath == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "no pdf has been generated for this letter")
	}

	data, err := s.files.Read(*letter.PDFPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read pdf")
	}
	return data, downloadFilename(request, letter), nil
}

// Status reports whether the stored PDF still matches the letter content.
func (s *PDFService) Status(ctx context.Context, professorID, letterID string) (*models.PDFStatus, error) {
	letter, _, err := s.loadOwnedLetter(ctx, professorID, letterID)
	if err != nil {
		return nil, err
	}
	return &models.PDFStatus{
		LetterID:       letter.ID,
		PDFPath:        letter.PDFPath,
		PDFGeneratedAt: letter.PDFGeneratedAt,
		UpToDate:       letter.PDFUpToDate(),
	}, nil
}

func (s *PDFService) buildOptions(professor *models.Professor) render.Options {
	opts := render.Options{
		ProfessorName:    professor.FullName,
		ShowName:         professor.HeaderLayout.ShowName,
		DefaultFontSize:  s.config.DefaultFontSize,
		FallbackFontSize: s.config.FallbackFontSize,
		FontFamily:       s.config.FontFamily,
	}

	for _, field := range professor.HeaderLayout.Fields {
		var value *string
		switch field {
		case models.HeaderFieldTitle:
			value = professor.Title
		case models.HeaderFieldDepartment:
			value = professor.Department
		case models.HeaderFieldInstitution:
			value = professor.Institution
		case models.HeaderFieldAddress:
			value = professor.Address
		case models.HeaderFieldPhone:
			value = professor.Phone
		}
		if value != nil && *value != "" {
			opts.HeaderLines = append(opts.HeaderLines, *value)
		}
	}

	if professor.LetterheadPath != nil {
		if data, err := s.uploads.Read(*professor.LetterheadPath); err == nil {
			opts.Letterhead = data
			opts.LetterheadType = imageType(*professor.LetterheadPath)
		} else {
			s.logger.Warn("letterhead unreadable, rendering without it", zap.Error(err))
		}
	}
	if professor.SignaturePath != nil {
		if data, err := s.uploads.Read(*professor.SignaturePath); err == nil {
			opts.Signature = data
			opts.SignatureType = imageType(*professor.SignaturePath)
		} else {
			s.logger.Warn("signature unreadable, rendering without it", zap.Error(err))
		}
	}
	return opts
}

func (s *PDFService) loadLetterWithProfessor(ctx context.Context, professorID, letterID string) (*models.Letter, *models.Professor, error) {
	letter, _, err := s.loadOwnedLetter(ctx, professorID, letterID)
	if err != nil {
		return nil, nil, err
	}
	professor, err := s.professors.FindByID(ctx, professorID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	return letter, professor, nil
}

func (s *PDFService) loadOwnedLetter(ctx context.Context, professorID, letterID string) (*models.Letter, *models.Request, error) {
	letter, err := s.letters.FindByID(ctx, letterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "letter not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter")
	}
	request, err := s.requests.FindByID(ctx, letter.RequestID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.ProfessorID != professorID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "letter not found")
	}
	return letter, request, nil
}

func downloadFilename(request *models.Request, letter *models.Letter) string {
	student := strings.ReplaceAll(strings.TrimSpace(request.StudentName), " ", "_")
	if student == "" {
		student = "letter"
	}
	kind := "letter"
	if letter.IsMaster {
		kind = "master"
	}
	return fmt.Sprintf("%s_%s_v%d.pdf", student, kind, letter.Version)
}

func imageType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "PNG"
	case ".jpg", ".jpeg":
		return "JPG"
	default:
		return ""
	}
}
