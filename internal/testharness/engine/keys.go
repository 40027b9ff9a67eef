package engine

// Infrastructure keys used internally by the engine.
const (
	InternalStepOutput = "__step_output"
)

// Output keys set by runner handlers and read by engine checkers.
const (
	KeyValue        = "value"
	KeyMessages     = "messages"
	KeyMessageKeys  = "message_keys"
	KeyMessageCount = "message_count"
	KeyError        = "error"
	KeyElapsed      = "elapsed"
)

// Checker registration names: the keys that appear under "expect" in YAML
// scenarios and index Engine.checkers.
const (
	CheckerNameDefault              = "default"
	CheckerNameValueGreaterThan     = "value_greater_than"
	CheckerNameValueLessThan        = "value_less_than"
	CheckerNameValueInRange         = "value_in_range"
	CheckerNameMessagesInclude      = "messages_include"
	CheckerNameNoMessages           = "no_messages"
	CheckerNameContains             = "contains"
	CheckerNameSaveAs               = "save_as"
	CheckerNameValueEquals          = "value_equals"
	CheckerNameErrorMessageContains = "error_message_contains"
	CheckerNameNoError              = "no_error"
	CheckerNameElapsedUnder         = "elapsed_under"
)
