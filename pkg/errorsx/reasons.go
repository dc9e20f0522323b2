package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonConfig ReasonCode = "config"

	ReasonLLMGenerate      ReasonCode = "llm_generate"
	ReasonLLMEmptyResponse ReasonCode = "llm_empty_response"
	ReasonLLMRateLimit     ReasonCode = "llm_rate_limit"
	ReasonLLMCircuitOpen   ReasonCode = "llm_circuit_open"

	ReasonToolExecution ReasonCode = "tool_execution"
	ReasonToolTimeout   ReasonCode = "tool_timeout"

	ReasonStoreQuery ReasonCode = "store_query"
	ReasonStoreWrite ReasonCode = "store_write"

	ReasonIngestParse  ReasonCode = "ingest_parse"
	ReasonIngestSource ReasonCode = "ingest_source"

	ReasonSession       ReasonCode = "session"
	ReasonTransportSend ReasonCode = "transport_send"
)
