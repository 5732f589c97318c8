// Package server provides HTTP routing, middleware, and the loopback OAuth callback receiver.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] registers method patterns on an [http.ServeMux]; [Middleware] added first runs outermost.
//
// # Callback Receiver
//
// [Receiver] listens on the fixed loopback address registered as the redirect URI (127.0.0.1:8888 by default):
//
//	GET  /callback?code=&error=  stage the code, push it to a waiting login, render a self-closing page
//	GET  /get-pending-code       read-once pull of the staged code: {"code": string|null}
//	GET  /config                 {"clientId", "redirectUri", "isConfigured"}
//	POST /save-config            {"clientId"}; 400 when blank, 500 when the .env file cannot be written
//
// The receiver runs for the lifetime of the process (the tui and auth login commands start one in-process),
// or standalone with spm serve, in which case a login in another process collects the code over /get-pending-code.
//
// Requests are logged at debug level without query strings, so codes never reach the log.
package server
