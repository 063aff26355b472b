package gateway

type Config struct {
	// ApiID is the API id reported in request contexts.
	ApiID string `conf:"api_id"`

	// SourceIPHeader is a header carrying the client address, used when
	// the gateway runs behind a proxy. Empty uses the connection address.
	SourceIPHeader string `conf:"source_ip_header"`
}
