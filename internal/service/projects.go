package service

import (
	"context"
	"slices"
	"strings"

	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/model"
)

const (
	maxProjectNameLength = 100
	defaultProjectColor  = "#667eea"
)

type CreateProjectInput struct {
	Name    string
	Spheres []string
	Color   string
}

func (s *TrackerService) ListProjects(ctx context.Context, userID string) ([]model.Project, *apperrors.APIError) {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	projects, err := t.store.LoadProjects(ctx)
	if err != nil {
		return nil, s.fail(err, userID, "list projects", "failed to load projects")
	}
	return projects, nil
}

// CreateProject adds a project spanning one or more spheres. Repeated spheres
// are collapsed.
func (s *TrackerService) CreateProject(ctx context.Context, userID string, input CreateProjectInput) (*model.Project, *apperrors.APIError) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, toAPIError(model.NewValidationError("name", "is required"), "")
	}
	if len([]rune(name)) > maxProjectNameLength {
		return nil, toAPIError(model.NewValidationError("name", "is too long"), "")
	}

	spheres := make([]model.Sphere, 0, len(input.Spheres))
	for _, raw := range input.Spheres {
		sphere, ok := model.ParseSphere(raw)
		if !ok {
			return nil, toAPIError(model.NewValidationError("spheres", "unknown sphere "+strings.TrimSpace(raw)), "")
		}
		if !slices.Contains(spheres, sphere) {
			spheres = append(spheres, sphere)
		}
	}
	if len(spheres) == 0 {
		return nil, toAPIError(model.NewValidationError("spheres", "at least one sphere is required"), "")
	}

	color := strings.TrimSpace(input.Color)
	switch {
	case color == "":
		color = defaultProjectColor
	case hexColor.MatchString(color):
		color = strings.ToLower(color)
	default:
		return nil, toAPIError(model.NewValidationError("color", "must be a #rrggbb colour"), "")
	}

	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	projects, err := t.store.LoadProjects(ctx)
	if err != nil {
		return nil, s.fail(err, userID, "create project", "failed to load projects")
	}
	project := model.Project{
		ID:        s.newID(),
		UserID:    userID,
		Name:      name,
		Spheres:   spheres,
		Color:     color,
		CreatedAt: s.clock.Now(),
	}
	projects = append(projects, project)
	if err := t.store.SaveProjects(ctx, projects); err != nil {
		return nil, s.fail(err, userID, "create project", "failed to save project")
	}
	return &project, nil
}

// DeleteProject removes a project together with its activities. Time entries
// are kept, like with DeleteActivity. A project whose activity is being timed
// cannot be deleted.
func (s *TrackerService) DeleteProject(ctx context.Context, userID, projectID string) *apperrors.APIError {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return apiErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	projects, err := t.store.LoadProjects(ctx)
	if err != nil {
		return s.fail(err, userID, "delete project", "failed to load projects")
	}
	idx := slices.IndexFunc(projects, func(p model.Project) bool { return p.ID == projectID })
	if idx < 0 {
		return apperrors.NotFound("project_not_found", "project not found")
	}

	activities, err := t.store.LoadActivities(ctx)
	if err != nil {
		return s.fail(err, userID, "delete project", "failed to load activities")
	}
	if active := t.machine.ActiveActivityID(); active != "" {
		if slices.ContainsFunc(activities, func(a model.Activity) bool {
			return a.ID == active && a.ProjectID == projectID
		}) {
			return apperrors.Conflict("project_in_use", "an activity of this project has an active timer", nil)
		}
	}

	kept := slices.DeleteFunc(activities, func(a model.Activity) bool { return a.ProjectID == projectID })
	if err := t.store.SaveActivities(ctx, kept); err != nil {
		return s.fail(err, userID, "delete project", "failed to save activities")
	}
	projects = slices.Delete(projects, idx, idx+1)
	if err := t.store.SaveProjects(ctx, projects); err != nil {
		return s.fail(err, userID, "delete project", "failed to save projects")
	}
	return nil
}

func (t *Tracker) findProject(ctx context.Context, id string) (model.Project, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findProjectLocked(ctx, id)
}

func (t *Tracker) findProjectLocked(ctx context.Context, id string) (model.Project, bool, error) {
	projects, err := t.store.LoadProjects(ctx)
	if err != nil {
		return model.Project{}, false, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true, nil
		}
	}
	return model.Project{}, false, nil
}
