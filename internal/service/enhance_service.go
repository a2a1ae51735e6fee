package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"image-enhancer/internal/domain"
	"image-enhancer/internal/enhancer"
	"image-enhancer/internal/repository"
	"image-enhancer/internal/storage"
)

// Stage names the pipeline position a submission reached. Used in log fields.
type Stage string

const (
	StageReceived    Stage = "received"
	StageValidated   Stage = "validated"
	StageTransformed Stage = "transformed"
	StagePersisted   Stage = "persisted"
	StageCompleted   Stage = "completed"
)

const outputPrefix = "enhanced_"

// Submission is one uploaded image plus the requested filter.
type Submission struct {
	Filename   string
	Data       []byte
	FilterType string
	Params     enhancer.Params
}

// Artifact is the processed image returned to the caller.
type Artifact struct {
	Name         string
	OriginalName string
	ContentType  string
	Data         []byte
}

// EnhanceService runs the upload → transform → history pipeline.
type EnhanceService interface {
	Submit(ctx context.Context, user *domain.User, sub Submission) (*Artifact, error)
	History(ctx context.Context, userID int64) ([]domain.HistoryRecord, error)
}

// EnhanceConfig wires the pipeline's collaborators.
type EnhanceConfig struct {
	Uploads       storage.Service
	Outputs       storage.Service
	History       repository.HistoryRepository
	StrictFilters bool
	// MaxPixels caps width*height of a decoded upload. Zero means enhancer.DefaultMaxPixels.
	MaxPixels int64
	Logger    logrus.FieldLogger
}

type enhanceService struct {
	cfg EnhanceConfig
}

func NewEnhanceService(cfg EnhanceConfig) EnhanceService {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = enhancer.DefaultMaxPixels
	}
	return &enhanceService{cfg: cfg}
}

// AllowedExtension reports whether filename ends in jpg, jpeg or png (case-insensitive).
func AllowedExtension(filename string) bool {
	ext := filepath.Ext(filename)
	if ext == "" {
		return false
	}
	_, ok := enhancer.FormatFromExtension(ext)
	return ok
}

func (s *enhanceService) Submit(ctx context.Context, user *domain.User, sub Submission) (*Artifact, error) {
	if user == nil {
		return nil, errors.New("submit requires an authenticated user")
	}
	log := s.cfg.Logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"filter":  sub.FilterType,
	})

	baseName := filepath.Base(strings.ReplaceAll(sub.Filename, `\`, "/"))
	if !AllowedExtension(baseName) {
		log.WithField("stage", StageReceived).Debug("rejected upload type")
		return nil, newValidationError(fmt.Errorf("%w: only jpg, jpeg and png are accepted", ErrUnsupportedType))
	}
	filterType := strings.ToLower(strings.TrimSpace(sub.FilterType))
	if !enhancer.Known(filterType) {
		if s.cfg.StrictFilters {
			return nil, newValidationError(fmt.Errorf("%w %q", ErrUnknownFilter, sub.FilterType))
		}
		log.Warn("unknown filter, image passes through unchanged")
	}

	storedName := uuid.NewString() + "_" + baseName
	log = log.WithField("upload", storedName)

	inputFormat, _ := enhancer.FormatFromExtension(filepath.Ext(baseName))
	if err := s.cfg.Uploads.Put(ctx, storedName, sub.Data, inputFormat.ContentType()); err != nil {
		log.WithError(err).Error("store upload")
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	log.WithField("stage", StageValidated).Debug("upload stored")

	img, format, err := enhancer.DecodeLimited(sub.Data, s.cfg.MaxPixels)
	if err != nil {
		// the stored upload is left in place; it has no history entry
		log.WithError(err).Warn("undecodable upload")
		return nil, newValidationError(fmt.Errorf("%w: %w", ErrUnreadableArtifact, err))
	}
	outputName := outputPrefix + storedName
	if format != inputFormat {
		outputName = strings.TrimSuffix(outputName, filepath.Ext(outputName)) + format.Extension()
	}

	processed, _ := enhancer.Apply(img, filterType, sub.Params)
	encoded, err := enhancer.Encode(processed, format)
	if err != nil {
		log.WithError(err).Error("encode output")
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	log.WithField("stage", StageTransformed).Debug("image transformed")

	// the transform is done; a client disconnect must not lose the output or its history row
	ctx = context.WithoutCancel(ctx)
	if err := s.cfg.Outputs.Put(ctx, outputName, encoded, format.ContentType()); err != nil {
		log.WithError(err).Error("store output")
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	log.WithField("stage", StagePersisted).Debug("output stored")

	record := &domain.HistoryRecord{
		UserID:           user.ID,
		OriginalFilename: storedName,
		EnhancedFilename: outputName,
		FilterType:       filterType,
	}
	if _, err := s.cfg.History.Create(ctx, record); err != nil {
		log.WithError(err).WithField("output", outputName).Error("history record not written; output has no audit entry")
	} else {
		log.WithFields(logrus.Fields{"stage": StageCompleted, "history_id": record.ID}).Info("enhancement completed")
	}

	return &Artifact{
		Name:         outputName,
		OriginalName: storedName,
		ContentType:  format.ContentType(),
		Data:         encoded,
	}, nil
}

func (s *enhanceService) History(ctx context.Context, userID int64) ([]domain.HistoryRecord, error) {
	records, err := s.cfg.History.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return records, nil
}
