package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/temario/core/topic"
	"github.com/trezcool/temario/core/user"
)

type topicApi struct {
	auth     *authenticator
	svc      topic.ServiceInterface
	validate *validator.Validate
}

func registerTopicAPI(g *echo.Group, auth *authenticator, svc topic.ServiceInterface, validate *validator.Validate) {
	api := topicApi{
		auth:     auth,
		svc:      svc,
		validate: validate,
	}

	tg := g.Group("/topics")

	// anonymous callers only get approved public topics
	tg.GET("", api.query, auth.optional())
	tg.GET("/:id", api.retrieve, auth.optional())

	ag := tg.Group("", auth.required())
	ag.POST("", api.create)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/submit", api.submit)
	ag.POST("/:id/approve", api.approve)
	ag.POST("/:id/reject", api.reject)
	ag.POST("/:id/request-changes", api.requestChanges)
	ag.POST("/:id/archive", api.archive)
	ag.POST("/:id/restore", api.restore)
	ag.POST("/:id/edit-request", api.requestEdit)
	ag.POST("/:id/edit-request/approve", api.approveEditRequest)
	ag.POST("/:id/edit-request/reject", api.rejectEditRequest)
	ag.PUT("/:id/collaborators", api.setCollaborators)
}

// TopicResponse is a Topic decorated with what the acting user may do with it.
type TopicResponse struct {
	topic.Topic
	Actions         []topic.Action        `json:"actions"`
	StatusBadge     topic.StatusBadge     `json:"status_badge"`
	VisibilityBadge topic.VisibilityBadge `json:"visibility_badge"`
	Permissions     map[string]bool       `json:"permissions"`
}

func newTopicResponse(usr *user.User, t topic.Topic) TopicResponse {
	return TopicResponse{
		Topic:           t,
		Actions:         topic.AvailableActions(usr, &t),
		StatusBadge:     topic.StatusBadgeFor(t.Status),
		VisibilityBadge: topic.VisibilityBadgeFor(t.Visibility),
		Permissions: map[string]bool{
			"edit_content":         topic.CanEditContent(usr, &t),
			"edit_quizzes":         topic.CanEditQuizzes(usr, &t),
			"restore":              topic.CanRestore(usr, &t),
			"request_edit":         topic.CanRequestEdit(usr, &t),
			"resolve_edit_request": topic.CanResolveEditRequest(usr, &t),
			"manage_collaborators": topic.CanManageCollaborators(usr, &t),
			"request_changes":      topic.CanReview(usr, &t) && t.Status == topic.StatusPendingReview,
		},
	}
}

// Handlers

func (api *topicApi) query(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}

	filter := new(topic.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []TopicResponse{})
	}
	filter.Clean()
	ordering := parseOrdering(ctx.QueryParam(orderingParam))

	topics, err := api.svc.Query(ctx.Request().Context(), usr, filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying topics")
	}
	resp := make([]TopicResponse, 0, len(topics))
	for _, t := range topics {
		resp = append(resp, newTopicResponse(usr, t))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *topicApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting topic")
	}
	return ctx.JSON(http.StatusOK, newTopicResponse(usr, t))
}

func (api *topicApi) create(ctx echo.Context) error {
	usr, err := api.auth.requireUser(ctx)
	if err != nil {
		return err
	}

	var data topic.NewTopic
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating topic")
	}
	return ctx.JSON(http.StatusCreated, newTopicResponse(usr, t))
}

func (api *topicApi) update(ctx echo.Context) error {
	usr, err := api.auth.requireUser(ctx)
	if err != nil {
		return err
	}

	var data topic.UpdateTopic
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTopic")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating topic")
	}
	return ctx.JSON(http.StatusOK, newTopicResponse(usr, t))
}

func (api *topicApi) destroy(ctx echo.Context) error {
	usr, err := api.auth.requireUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting topic")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *topicApi) submit(ctx echo.Context) error {
	return api.act(ctx, "submitting topic for review", api.svc.SubmitForReview)
}

func (api *topicApi) approve(ctx echo.Context) error {
	return api.act(ctx, "approving topic", api.svc.Approve)
}

func (api *topicApi) reject(ctx echo.Context) error {
	return api.review(ctx, "rejecting topic", api.svc.Reject)
}

func (api *topicApi) requestChanges(ctx echo.Context) error {
	return api.review(ctx, "requesting changes", api.svc.RequestChanges)
}

func (api *topicApi) archive(ctx echo.Context) error {
	return api.act(ctx, "archiving topic", api.svc.Archive)
}

func (api *topicApi) restore(ctx echo.Context) error {
	return api.act(ctx, "restoring topic", api.svc.Restore)
}

func (api *topicApi) requestEdit(ctx echo.Context) error {
	usr, err := api.auth.requireUser(ctx)
	if err != nil {
		return err
	}

	var data topic.EditRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditRequest")
	}

	t, err := api.svc.RequestEdit(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "requesting edit")
	}
	return ctx.JSON(http.StatusOK, newTopicResponse(usr, t))
}

func (api *topicApi) approveEditRequest(ctx echo.Context) error {
	return api.act(ctx, "approving edit request", api.svc.ApproveEditRequest)
}

func (api *topicApi) rejectEditRequest(ctx echo.Context) error {
	return api.act(ctx, "rejecting edit request", api.svc.RejectEditRequest)
}

func (api *topicApi) setCollaborators(ctx echo.Context) error {
	usr, err := api.auth.requireUser(ctx)
	if err != nil {
		return err
	}

	var data topic.Collaborators
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Collaborators")
	}

	t, err := api.svc.SetCollaborators(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting collaborators")
	}
	return ctx.JSON(http.StatusOK, newTopicResponse(usr, t))
}

type (
	topicActionFunc func(ctx context.Context, usr *user.User, id string) (topic.Topic, error)
	topicReviewFunc func(ctx context.Context, usr *user.User, id string, rc topic.ReviewComment) (topic.Topic, error)
)

// act runs a body-less transition on the topic in the path.
func (api *topicApi) act(ctx echo.Context, desc string, fn topicActionFunc) error {
	usr, err := api.auth.requireUser(ctx)
	if err != nil {
		return err
	}
	t, err := fn(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, desc)
	}
	return ctx.JSON(http.StatusOK, newTopicResponse(usr, t))
}

// review runs a transition that requires reviewer comments.
func (api *topicApi) review(ctx echo.Context, desc string, fn topicReviewFunc) error {
	usr, err := api.auth.requireUser(ctx)
	if err != nil {
		return err
	}

	var data topic.ReviewComment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewComment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := fn(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, desc)
	}
	return ctx.JSON(http.StatusOK, newTopicResponse(usr, t))
}
