package api

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/pixelvault/gallery-repo/api/_routers"
	v1 "github.com/pixelvault/gallery-repo/api/v1"
	"github.com/sirupsen/logrus"
)

const PrefixGallery = "/_gallery/v1"

func buildRoutes() http.Handler {
	counter := &_routers.RequestCounter{}
	router := buildPrimaryRouter()

	orderPath := "galleries/:galleryId/orders/:orderId"
	artifactPath := orderPath + "/:artifactType"

	downloadRoute := makeRoute(_routers.OptionalOwnerToken(v1.DownloadArtifact), "download_artifact", counter)
	register([]string{"GET", "POST"}, artifactPath+"/download", router, downloadRoute)
	register([]string{"GET"}, artifactPath+"/status", router, makeRoute(_routers.OptionalOwnerToken(v1.ArtifactStatus), "artifact_status", counter))
	register([]string{"POST"}, artifactPath+"/retry", router, makeRoute(_routers.RequireOwnerToken(v1.RetryBuild), "retry_build", counter))

	// Delivery transitions. Clients drive the selection steps from their
	// order link; everything else is the photographer's.
	register([]string{"POST"}, orderPath+"/approve", router, makeRoute(_routers.OptionalOwnerToken(v1.ApproveSelection), "approve_selection", counter))
	register([]string{"POST"}, orderPath+"/request-changes", router, makeRoute(_routers.OptionalOwnerToken(v1.RequestChanges), "request_changes", counter))
	register([]string{"POST"}, orderPath+"/resolve-changes", router, makeRoute(_routers.RequireOwnerToken(v1.ResolveChanges), "resolve_changes", counter))
	register([]string{"POST"}, orderPath+"/final-uploaded", router, makeRoute(_routers.RequireOwnerToken(v1.FinalFileUploaded), "final_file_uploaded", counter))
	register([]string{"POST"}, orderPath+"/deliver", router, makeRoute(_routers.RequireOwnerToken(v1.MarkDelivered), "mark_delivered", counter))
	register([]string{"POST"}, orderPath+"/cancel", router, makeRoute(_routers.RequireOwnerToken(v1.CancelOrder), "cancel_order", counter))

	register([]string{"POST"}, "galleries/:galleryId/addons/backup-storage", router, makeRoute(_routers.RequireOwnerToken(v1.EnableBackupStorage), "enable_backup_storage", counter))

	router.Handler("GET", fmt.Sprintf("%s/version", PrefixGallery), makeRoute(_routers.OptionalOwnerToken(v1.GetVersion), "get_version", counter))
	healthzRoute := makeRoute(_routers.OptionalOwnerToken(v1.GetHealthz), "healthz", counter)
	router.Handler("GET", "/healthz", healthzRoute)
	router.Handler("HEAD", "/healthz", healthzRoute)

	return router
}

func makeRoute(generator _routers.GeneratorFn, name string, counter *_routers.RequestCounter) http.Handler {
	return _routers.NewInstallMetadataRouter(name, counter,
		_routers.NewMetricsRequestRouter(
			_routers.NewRContextRouter(generator, _routers.NewMetricsResponseRouter(nil)),
		))
}

func register(methods []string, postfix string, router *httprouter.Router, handler http.Handler) {
	for _, method := range methods {
		path := fmt.Sprintf("%s/%s", PrefixGallery, postfix)
		router.Handler(method, path, handler)
		logrus.Debug("Registering route: ", method, " ", path)
	}
}
