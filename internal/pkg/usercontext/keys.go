package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyIdentity = "identity"
	KeyStoreID  = "store_id"
	KeyCallerBy = "caller_credential"
	KeyRawBody  = "raw_body"
)
