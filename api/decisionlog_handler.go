package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/id"
)

func (a *API) registerDecisionLogRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("decision-logs"))

	if err := g.GET("/decision-logs", a.listDecisionLogs,
		forge.WithSummary("Query decision logs"),
		forge.WithDescription("Returns authorization decision audit logs with optional filters, newest first."),
		forge.WithOperationID("listDecisionLogs"),
		forge.WithRequestSchema(ListDecisionLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision log list", ListResponse[*decisionlog.Entry]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/decision-logs/:logId", a.getDecisionLog,
		forge.WithSummary("Get decision log"),
		forge.WithOperationID("getDecisionLog"),
		forge.WithResponseSchema(http.StatusOK, "Decision log entry", &decisionlog.Entry{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/decision-logs/purge", a.purgeDecisionLogs,
		forge.WithSummary("Purge decision logs"),
		forge.WithDescription("Removes entries created before the cut-off."),
		forge.WithOperationID("purgeDecisionLogs"),
		forge.WithRequestSchema(PurgeDecisionLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Purge result", PurgeResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listDecisionLogs(ctx forge.Context, req *ListDecisionLogsRequest) (*ListResponse[*decisionlog.Entry], error) {
	filter := &decisionlog.QueryFilter{
		ActorID: req.ActorID,
		Module:  req.Module,
		Reason:  req.Reason,
		Limit:   defaultLimit(req.Limit),
		Offset:  req.Offset,
	}
	if req.Granted != "" {
		granted, err := strconv.ParseBool(req.Granted)
		if err != nil {
			return nil, forge.BadRequest("invalid granted filter")
		}
		filter.Granted = &granted
	}
	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	items, total, err := a.admin.ListDecisionLogs(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*decisionlog.Entry]{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) getDecisionLog(ctx forge.Context, _ *GetDecisionLogRequest) (*decisionlog.Entry, error) {
	logID, err := id.ParseDecisionLogID(ctx.Param("logId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid decision log ID: %v", err))
	}

	e, err := a.admin.GetDecisionLog(ctx.Context(), logID)
	if err != nil {
		return nil, mapError(err)
	}
	return e, ctx.JSON(http.StatusOK, e)
}

func (a *API) purgeDecisionLogs(ctx forge.Context, req *PurgeDecisionLogsRequest) (*PurgeResponse, error) {
	before, err := time.Parse(time.RFC3339, req.Before)
	if err != nil {
		return nil, forge.BadRequest("invalid before timestamp")
	}

	n, err := a.admin.PurgeDecisionLogs(ctx.Context(), before)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &PurgeResponse{Removed: n}
	return resp, ctx.JSON(http.StatusOK, resp)
}
