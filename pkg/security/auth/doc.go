/*
Package auth authenticates administration API requests by API key.

Each configured key names the administrator it stands for. The middleware
reads the key from "Authorization: Bearer <key>" or the X-Warden-Key header,
rejects unknown or disabled keys with a JSON 401, and stores the
administrator in the request context:

	validator := auth.NewValidator([]auth.Key{
		{Admin: "alice", Secret: os.Getenv("ALICE_KEY"), Enabled: true},
	})
	mw := auth.NewMiddleware(validator, nil, logger)

	router.With(mw.Handle).Post("/v1/policies", apply)

Handlers call AdminFrom to obtain the authenticated administrator. Policies
applied through an authenticated request are attributed to that
administrator regardless of the created_by field in the body.
*/
package auth
