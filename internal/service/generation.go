// Generation business logic: the orchestration glue between the store, the
// workspace, and the model providers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/appforge/internal/ai"
	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
	"github.com/sakif/appforge/internal/workspace"
)

// CostPerGeneration is the flat credit price of one model call. Flat pricing
// is deliberate: users reason about "N generations left", not token math.
const CostPerGeneration = 10

// MaxPromptLength bounds the user prompt. Context built from project files
// is budgeted separately by the context builder.
const MaxPromptLength = 10000

// GenerationService runs AI generations end to end: credit check, context
// build, provider call, parse, apply, charge, log.
type GenerationService struct {
	users       repository.UserRepository
	projects    repository.ProjectRepository
	files       repository.ProjectFileRepository
	generations repository.GenerationRepository
	provider    ai.Provider
	contexts    *ai.ContextBuilder
	logger      *slog.Logger
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(
	store repository.Store,
	provider ai.Provider,
	contexts *ai.ContextBuilder,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		users:       store,
		projects:    store,
		files:       store,
		generations: store,
		provider:    provider,
		contexts:    contexts,
		logger:      logger,
	}
}

// GenerationResult is what a completed generation returns to the handler.
type GenerationResult struct {
	Generation   *model.Generation   `json:"generation"`
	Files        []model.ProjectFile `json:"files"`   // files created or updated by this run
	Credits      int                 `json:"credits"` // balance after charging
	ResponseText string              `json:"responseText"`
}

// Generate runs one model invocation for the user.
//
// ORDERING GUARANTEES:
//   - The credit check happens FIRST. A user who cannot afford the call
//     never causes a provider request, a store write, or a usage log row.
//   - Parsed files are applied in response order through the store's single
//     upsert path, so a model that emits src/App.jsx twice leaves one row
//     holding the later content.
//   - Credits are charged and the usage row written only after the provider
//     call succeeds. A provider failure costs nothing.
//
// projectID may be empty: the generation then runs without project context
// and its parsed files are discarded (there is nowhere to put them), but
// the response text and usage row still come back.
func (s *GenerationService) Generate(ctx context.Context, userID, projectID, prompt string) (*GenerationResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperror.ValidationFailed("prompt", "prompt is required")
	}
	if len(prompt) > MaxPromptLength {
		return nil, apperror.ValidationFailed("prompt", fmt.Sprintf("prompt must be %d characters or fewer", MaxPromptLength))
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Credits < CostPerGeneration {
		return nil, apperror.InsufficientCredits(user.Credits, CostPerGeneration)
	}

	var project *model.Project
	if projectID != "" {
		project, err = s.projects.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if project.UserID != userID {
			return nil, apperror.Forbidden("you do not own this project")
		}
	}

	req := ai.Request{Prompt: prompt}
	if project != nil {
		pc, err := s.contexts.Build(ctx, project.ID)
		if err != nil {
			// A context build failure (disk trouble) shouldn't kill the
			// generation — the model just works without project grounding.
			s.logger.Warn("building project context failed, generating without it",
				slog.String("projectID", project.ID),
				slog.String("error", err.Error()),
			)
		} else {
			req.Context = pc
		}
	}

	result, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, err // already an apperror.Upstream
	}

	var applied []model.ProjectFile
	if project != nil {
		for _, gf := range ai.ParseGeneratedFiles(result.Text) {
			pf := &model.ProjectFile{
				ProjectID: project.ID,
				Path:      gf.Path,
				Content:   gf.Content,
				Language:  gf.Language,
			}
			if pf.Language == "" {
				pf.Language = workspace.LanguageForPath(gf.Path)
			}
			if err := s.files.CreateOrUpdateProjectFile(ctx, pf); err != nil {
				return nil, fmt.Errorf("service/generation: applying generated file %s: %w", gf.Path, err)
			}
			applied = append(applied, *pf)
		}

		// Any applied file counts as activity; move the project to the
		// front of the recents list.
		if len(applied) > 0 {
			if err := s.projects.UpdateProject(ctx, project); err != nil {
				s.logger.Warn("touching project after generation failed",
					slog.String("projectID", project.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	balance, err := s.users.ApplyCreditDelta(ctx, userID, -CostPerGeneration)
	if err != nil {
		// Concurrent spending can drain the balance between our check and
		// the charge. The atomic delta is the real guard; the early check
		// just avoids wasted provider calls.
		if errors.Is(err, apperror.ErrInsufficientCredits) {
			return nil, err
		}
		return nil, fmt.Errorf("service/generation: charging credits: %w", err)
	}

	gen := &model.Generation{
		UserID:      userID,
		ProjectID:   projectID,
		Prompt:      prompt,
		Response:    result.Text,
		CreditsUsed: CostPerGeneration,
		Model:       result.Model,
	}
	if err := s.generations.CreateGeneration(ctx, gen); err != nil {
		// The charge stuck but the log row didn't. Log loudly; refunding
		// here could double-refund on a retry, so we don't.
		s.logger.Error("recording generation failed after charge",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("generation completed",
		slog.String("userID", userID),
		slog.String("projectID", projectID),
		slog.String("model", result.Model),
		slog.Int("filesApplied", len(applied)),
		slog.Int("creditsRemaining", balance),
	)

	return &GenerationResult{
		Generation:   gen,
		Files:        applied,
		Credits:      balance,
		ResponseText: result.Text,
	}, nil
}

// History returns the caller's recent generations, newest first.
func (s *GenerationService) History(ctx context.Context, userID string, limit int) ([]model.Generation, error) {
	return s.generations.GetUserGenerations(ctx, userID, limit)
}
