package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-reconcile-pipeline/docs"
	"go-reconcile-pipeline/internal/api/handler"
	"go-reconcile-pipeline/pkg/router"
)

func RegisterRoutes(r *router.Router) {
	r.POST("/api/v1/reconciliations", handler.CreateReconciliation)
	r.GET("/api/v1/reconciliations", handler.ListReconciliations)
	// More specific routes first
	r.GET("/api/v1/reconciliations/*/report", handler.GetReconciliationReport)
	r.GET("/api/v1/reconciliations/*/conflicts", handler.GetReconciliationConflicts)
	r.GET("/api/v1/reconciliations/*/groups", handler.GetReconciliationGroups)
	r.GET("/api/v1/reconciliations/*/errors", handler.GetReconciliationErrors)
	r.GET("/api/v1/reconciliations/*/progress", handler.GetReconciliationProgress)
	r.POST("/api/v1/reconciliations/*/retry", handler.RetryReconciliation)
	// Generic run routes last
	r.GET("/api/v1/reconciliations/*", handler.GetReconciliation)
	r.DELETE("/api/v1/reconciliations/*", handler.DeleteReconciliation)

	r.Mount("/swagger/", httpSwagger.WrapHandler)
}
