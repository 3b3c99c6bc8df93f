package service

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"workingonit/backend/internal/classifier"
	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/model"
)

const maxActivityNameLength = 100

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type CreateActivityInput struct {
	Name      string
	Sphere    string
	Color     string
	ProjectID string
}

type ActivityCreated struct {
	Activity model.Activity `json:"activity"`
	// Classification is set when the sphere was not supplied.
	Classification *classifier.Result `json:"classification,omitempty"`
}

type Suggestion struct {
	Found   bool              `json:"found"`
	Sphere  model.Sphere      `json:"sphere,omitempty"`
	Method  classifier.Method `json:"method,omitempty"`
	Keyword string            `json:"keyword,omitempty"`
	Info    *model.SphereInfo `json:"info,omitempty"`
}

func (s *TrackerService) ListActivities(ctx context.Context, userID string) ([]model.Activity, *apperrors.APIError) {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	activities, err := t.store.LoadActivities(ctx)
	if err != nil {
		return nil, s.fail(err, userID, "list activities", "failed to load activities")
	}
	return activities, nil
}

// CreateActivity adds an activity. Without an explicit sphere the name is
// classified; without a colour the sphere's first palette colour is used.
// An activity placed in a project must use one of the project's spheres.
func (s *TrackerService) CreateActivity(ctx context.Context, userID string, input CreateActivityInput) (*ActivityCreated, *apperrors.APIError) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, toAPIError(model.NewValidationError("name", "is required"), "")
	}
	if len([]rune(name)) > maxActivityNameLength {
		return nil, toAPIError(model.NewValidationError("name", "is too long"), "")
	}

	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	projectID := strings.TrimSpace(input.ProjectID)
	var project *model.Project
	if projectID != "" {
		p, found, err := t.findProject(ctx, projectID)
		if err != nil {
			return nil, s.fail(err, userID, "create activity", "failed to load projects")
		}
		if !found {
			return nil, toAPIError(model.NewValidationError("projectId", "unknown project"), "")
		}
		project = &p
	}

	out := &ActivityCreated{}
	var sphere model.Sphere
	if strings.TrimSpace(input.Sphere) == "" {
		res := s.classify(ctx, name)
		if project != nil && !slices.Contains(project.Spheres, res.Sphere) {
			res = classifier.Result{Sphere: project.Spheres[0], Method: classifier.MethodDefault}
		}
		sphere = res.Sphere
		out.Classification = &res
	} else {
		parsed, ok := model.ParseSphere(input.Sphere)
		if !ok {
			return nil, toAPIError(model.NewValidationError("sphere", "unknown sphere"), "")
		}
		if project != nil && !slices.Contains(project.Spheres, parsed) {
			return nil, toAPIError(model.NewValidationError("sphere", "is not one of the project's spheres"), "")
		}
		sphere = parsed
	}

	color, ok := resolveColor(sphere, input.Color)
	if !ok {
		return nil, toAPIError(model.NewValidationError("color", "must be a #rrggbb colour"), "")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if project != nil {
		_, found, err := t.findProjectLocked(ctx, projectID)
		if err != nil {
			return nil, s.fail(err, userID, "create activity", "failed to load projects")
		}
		if !found {
			return nil, toAPIError(model.NewValidationError("projectId", "unknown project"), "")
		}
	}

	activities, err := t.store.LoadActivities(ctx)
	if err != nil {
		return nil, s.fail(err, userID, "create activity", "failed to load activities")
	}

	activity := model.Activity{
		ID:        s.newID(),
		UserID:    userID,
		ProjectID: projectID,
		Name:      name,
		Sphere:    sphere,
		Color:     color,
		CreatedAt: s.clock.Now(),
	}
	activities = append(activities, activity)
	if err := t.store.SaveActivities(ctx, activities); err != nil {
		return nil, s.fail(err, userID, "create activity", "failed to save activity")
	}
	t.syncLocked(ctx)

	out.Activity = activity
	return out, nil
}

// DeleteActivity removes an activity. Its time entries are kept and drop out
// of analytics. An activity that is being timed cannot be deleted.
func (s *TrackerService) DeleteActivity(ctx context.Context, userID, activityID string) *apperrors.APIError {
	t, apiErr := s.tracker(ctx, userID)
	if apiErr != nil {
		return apiErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.machine.ActiveActivityID() == activityID {
		return apperrors.Conflict("activity_in_use", "activity has an active timer", nil)
	}

	activities, err := t.store.LoadActivities(ctx)
	if err != nil {
		return s.fail(err, userID, "delete activity", "failed to load activities")
	}
	idx := slices.IndexFunc(activities, func(a model.Activity) bool { return a.ID == activityID })
	if idx < 0 {
		return apperrors.NotFound("activity_not_found", "activity not found")
	}
	activities = slices.Delete(activities, idx, idx+1)
	if err := t.store.SaveActivities(ctx, activities); err != nil {
		return s.fail(err, userID, "delete activity", "failed to save activities")
	}
	return nil
}

// SuggestSphere proposes a sphere for a name being typed. Short names and
// names nothing recognises yield Found=false.
func (s *TrackerService) SuggestSphere(ctx context.Context, name string) *Suggestion {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < classifier.MinSuggestLength || s.classifier == nil {
		return &Suggestion{}
	}
	res, ok := s.classifier.Suggest(ctx, name)
	if !ok {
		return &Suggestion{}
	}
	info := res.Sphere.Info()
	return &Suggestion{
		Found:   true,
		Sphere:  res.Sphere,
		Method:  res.Method,
		Keyword: res.Keyword,
		Info:    &info,
	}
}

func (s *TrackerService) classify(ctx context.Context, name string) classifier.Result {
	if s.classifier == nil {
		return classifier.Result{Sphere: model.DefaultSphere, Method: classifier.MethodDefault}
	}
	return s.classifier.Classify(ctx, name)
}

func resolveColor(sphere model.Sphere, raw string) (string, bool) {
	color := strings.TrimSpace(raw)
	palette := sphere.Info().Colors
	if color == "" {
		if len(palette) == 0 {
			return "", false
		}
		return palette[0], true
	}
	for _, c := range palette {
		if strings.EqualFold(c, color) {
			return c, true
		}
	}
	if hexColor.MatchString(color) {
		return strings.ToLower(color), true
	}
	return "", false
}
