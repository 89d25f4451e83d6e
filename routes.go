package main

import (
	"net/http"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buildInPublicAPI/middleware"
)

func (a *app) routes() http.Handler {
	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(a.limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuth(a.cfg.MetricsUser, a.cfg.MetricsPass)(promhttp.Handler()))
	standardRouter.HandleFunc("/health", a.health.Health).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", a.webhooks.HandleClerkWebhook).Methods("POST")
	standardRouter.HandleFunc("/webhooks/stripe", a.webhooks.HandleStripeWebhook).Methods("POST")
	standardRouter.HandleFunc("/webhooks/paddle", a.paddle.PaddleWebhookHandler).Methods("POST")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	// -------------------------------------------------------------------------
	// PUBLIC ROUTES (AUTH HEADER OPTIONAL)
	// -------------------------------------------------------------------------
	public := api.PathPrefix("").Subrouter()
	public.Use(a.auth.Optional)

	public.HandleFunc("/builders", a.profiles.ListBuilders).Methods("GET")
	public.HandleFunc("/profiles/{username}", a.profiles.GetProfile).Methods("GET")
	public.HandleFunc("/profiles/{username}/qr", a.profiles.QRCode).Methods("GET")
	public.HandleFunc("/profiles/{username}/posts", a.feed.UserPosts).Methods("GET")
	public.HandleFunc("/profiles/{username}/followers", a.follows.Followers).Methods("GET")
	public.HandleFunc("/profiles/{username}/following", a.follows.Following).Methods("GET")
	public.HandleFunc("/profiles/{username}/contributions", a.progress.Contributions).Methods("GET")
	public.HandleFunc("/profiles/{username}/streak", a.progress.Streak).Methods("GET")
	public.HandleFunc("/profiles/{username}/achievements", a.progress.Achievements).Methods("GET")
	public.HandleFunc("/profiles/{username}/sponsors", a.sponsors.ListSponsors).Methods("GET")

	public.HandleFunc("/posts/explore", a.feed.Explore).Methods("GET")
	public.HandleFunc("/posts/{id}", a.posts.GetPost).Methods("GET")
	public.HandleFunc("/posts/{id}/comments", a.posts.ListComments).Methods("GET")
	public.HandleFunc("/tags/trending", a.feed.TrendingTags).Methods("GET")
	public.HandleFunc("/tags/{tag}/posts", a.feed.TagPosts).Methods("GET")

	public.HandleFunc("/startups", a.startups.ListStartups).Methods("GET")
	public.HandleFunc("/startups/{slug}", a.startups.GetStartup).Methods("GET")

	public.HandleFunc("/sponsor/prices", a.sponsors.GetPrices).Methods("GET")
	public.HandleFunc("/sponsor/success", a.sponsors.CheckoutResult).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(a.auth.Require)

	protected.HandleFunc("/me", a.profiles.GetMe).Methods("GET")
	protected.HandleFunc("/me", a.profiles.UpdateMe).Methods("PUT")
	protected.HandleFunc("/me", a.profiles.DeleteMe).Methods("DELETE")
	protected.HandleFunc("/me/sponsorships", a.sponsors.MySponsorships).Methods("GET")

	protected.HandleFunc("/feed", a.feed.Feed).Methods("GET")
	protected.HandleFunc("/posts", a.posts.CreatePost).Methods("POST")
	protected.HandleFunc("/posts/{id}", a.posts.DeletePost).Methods("DELETE")
	protected.HandleFunc("/posts/{id}/like", a.posts.ToggleLike).Methods("POST")
	protected.HandleFunc("/posts/{id}/comments", a.posts.AddComment).Methods("POST")
	protected.HandleFunc("/comments/{id}", a.posts.DeleteComment).Methods("DELETE")

	protected.HandleFunc("/follows/{username}", a.follows.Follow).Methods("POST")
	protected.HandleFunc("/follows/{username}", a.follows.Unfollow).Methods("DELETE")

	protected.HandleFunc("/startups", a.startups.CreateStartup).Methods("POST")
	protected.HandleFunc("/startups/{id}", a.startups.UpdateStartup).Methods("PUT")
	protected.HandleFunc("/startups/{id}/milestones", a.startups.AddMilestone).Methods("POST")
	protected.HandleFunc("/startups/{id}/milestones/{milestoneId}", a.startups.DeleteMilestone).Methods("DELETE")
	protected.HandleFunc("/startups/{id}/revenue", a.startups.ListRevenue).Methods("GET")
	protected.HandleFunc("/startups/{id}/revenue", a.startups.AddRevenue).Methods("POST")

	protected.HandleFunc("/github/sync", a.progress.SyncGitHub).Methods("POST")

	protected.HandleFunc("/sponsor/checkout", a.sponsors.CreateCheckout).Methods("POST")

	protected.HandleFunc("/notifications/devices", a.notifications.RegisterDevice).Methods("POST")
	protected.HandleFunc("/notifications/devices/{token}", a.notifications.UnregisterDevice).Methods("DELETE")

	// CORS configuration
	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	return corsHandler(r)
}
