package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/pkg/api"
)

// SettlementServiceName is the fully-qualified name of the SettlementService service.
const SettlementServiceName = "splitledger.v1.SettlementService"

const (
	SettlementServiceGetAvailableSettlementsProcedure = "/splitledger.v1.SettlementService/GetAvailableSettlements"
	SettlementServiceExecuteSettlementsProcedure      = "/splitledger.v1.SettlementService/ExecuteSettlements"
	SettlementServiceGetSettlementSummaryProcedure    = "/splitledger.v1.SettlementService/GetSettlementSummary"
	SettlementServiceGetSettlementAnalyticsProcedure  = "/splitledger.v1.SettlementService/GetSettlementAnalytics"
	SettlementServiceGetSettlementHistoryProcedure    = "/splitledger.v1.SettlementService/GetSettlementHistory"
)

// SettlementServiceHandler is implemented by service.SettlementService.
type SettlementServiceHandler interface {
	GetAvailableSettlements(context.Context, *connect.Request[api.GetAvailableSettlementsRequest]) (*connect.Response[api.GetAvailableSettlementsResponse], error)
	ExecuteSettlements(context.Context, *connect.Request[api.ExecuteSettlementsRequest]) (*connect.Response[api.ExecuteSettlementsResponse], error)
	GetSettlementSummary(context.Context, *connect.Request[api.GetSettlementSummaryRequest]) (*connect.Response[api.GetSettlementSummaryResponse], error)
	GetSettlementAnalytics(context.Context, *connect.Request[api.GetSettlementAnalyticsRequest]) (*connect.Response[api.GetSettlementAnalyticsResponse], error)
	GetSettlementHistory(context.Context, *connect.Request[api.GetSettlementHistoryRequest]) (*connect.Response[api.GetSettlementHistoryResponse], error)
}

// NewSettlementServiceHandler returns the mount path and handler of the SettlementService.
func NewSettlementServiceHandler(svc SettlementServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	available := connect.NewUnaryHandler(SettlementServiceGetAvailableSettlementsProcedure, svc.GetAvailableSettlements, opts...)
	execute := connect.NewUnaryHandler(SettlementServiceExecuteSettlementsProcedure, svc.ExecuteSettlements, opts...)
	summary := connect.NewUnaryHandler(SettlementServiceGetSettlementSummaryProcedure, svc.GetSettlementSummary, opts...)
	analytics := connect.NewUnaryHandler(SettlementServiceGetSettlementAnalyticsProcedure, svc.GetSettlementAnalytics, opts...)
	history := connect.NewUnaryHandler(SettlementServiceGetSettlementHistoryProcedure, svc.GetSettlementHistory, opts...)

	return "/" + SettlementServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SettlementServiceGetAvailableSettlementsProcedure:
			available.ServeHTTP(w, r)
		case SettlementServiceExecuteSettlementsProcedure:
			execute.ServeHTTP(w, r)
		case SettlementServiceGetSettlementSummaryProcedure:
			summary.ServeHTTP(w, r)
		case SettlementServiceGetSettlementAnalyticsProcedure:
			analytics.ServeHTTP(w, r)
		case SettlementServiceGetSettlementHistoryProcedure:
			history.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SettlementServiceClient is a client for the splitledger.v1.SettlementService service.
type SettlementServiceClient interface {
	SettlementServiceHandler
}

func NewSettlementServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SettlementServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &settlementServiceClient{
		available: connect.NewClient[api.GetAvailableSettlementsRequest, api.GetAvailableSettlementsResponse](httpClient, baseURL+SettlementServiceGetAvailableSettlementsProcedure, opts...),
		execute:   connect.NewClient[api.ExecuteSettlementsRequest, api.ExecuteSettlementsResponse](httpClient, baseURL+SettlementServiceExecuteSettlementsProcedure, opts...),
		summary:   connect.NewClient[api.GetSettlementSummaryRequest, api.GetSettlementSummaryResponse](httpClient, baseURL+SettlementServiceGetSettlementSummaryProcedure, opts...),
		analytics: connect.NewClient[api.GetSettlementAnalyticsRequest, api.GetSettlementAnalyticsResponse](httpClient, baseURL+SettlementServiceGetSettlementAnalyticsProcedure, opts...),
		history:   connect.NewClient[api.GetSettlementHistoryRequest, api.GetSettlementHistoryResponse](httpClient, baseURL+SettlementServiceGetSettlementHistoryProcedure, opts...),
	}
}

type settlementServiceClient struct {
	available *connect.Client[api.GetAvailableSettlementsRequest, api.GetAvailableSettlementsResponse]
	execute   *connect.Client[api.ExecuteSettlementsRequest, api.ExecuteSettlementsResponse]
	summary   *connect.Client[api.GetSettlementSummaryRequest, api.GetSettlementSummaryResponse]
	analytics *connect.Client[api.GetSettlementAnalyticsRequest, api.GetSettlementAnalyticsResponse]
	history   *connect.Client[api.GetSettlementHistoryRequest, api.GetSettlementHistoryResponse]
}

func (c *settlementServiceClient) GetAvailableSettlements(ctx context.Context, req *connect.Request[api.GetAvailableSettlementsRequest]) (*connect.Response[api.GetAvailableSettlementsResponse], error) {
	return c.available.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ExecuteSettlements(ctx context.Context, req *connect.Request[api.ExecuteSettlementsRequest]) (*connect.Response[api.ExecuteSettlementsResponse], error) {
	return c.execute.CallUnary(ctx, req)
}

func (c *settlementServiceClient) GetSettlementSummary(ctx context.Context, req *connect.Request[api.GetSettlementSummaryRequest]) (*connect.Response[api.GetSettlementSummaryResponse], error) {
	return c.summary.CallUnary(ctx, req)
}

func (c *settlementServiceClient) GetSettlementAnalytics(ctx context.Context, req *connect.Request[api.GetSettlementAnalyticsRequest]) (*connect.Response[api.GetSettlementAnalyticsResponse], error) {
	return c.analytics.CallUnary(ctx, req)
}

func (c *settlementServiceClient) GetSettlementHistory(ctx context.Context, req *connect.Request[api.GetSettlementHistoryRequest]) (*connect.Response[api.GetSettlementHistoryResponse], error) {
	return c.history.CallUnary(ctx, req)
}
