package runner

// Action names as they appear in scenario steps.
const (
	ActionPress         = "press"
	ActionHold          = "hold"
	ActionDeposit       = "deposit"
	ActionSend          = "send"
	ActionSendRaw       = "send_raw"
	ActionWait          = "wait"
	ActionRead          = "read"
	ActionCloseSerialIn = "close_serial_in"
	ActionClose         = "close"
	ActionDestroyPin    = "destroy_pin"
)

// Step parameters.
const (
	ParamButton     = "button"
	ParamDurationMs = "duration_ms"
	ParamCents      = "cents"
	ParamKey        = "key"
	ParamValueHex   = "value_hex"
	ParamHex        = "hex"
	ParamChunkSize  = "chunk_size"
	ParamCount      = "count"
	ParamQuietMs    = "quiet_ms"
	ParamTimeoutMs  = "timeout_ms"
	ParamAllowError = "allow_error"
)

// Button names accepted by ParamButton.
const (
	ButtonSmall    = "small"
	ButtonMedium   = "medium"
	ButtonLarge    = "large"
	ButtonDispense = "dispense"
)

// Output keys produced by handlers, beyond the engine's shared keys.
const (
	KeyFunds          = "funds"
	KeyRefunded       = "refunded"
	KeyOrder          = "order"
	KeyReceipt        = "receipt"
	KeyMachineStopped = "machine_stopped"
	KeyClosed         = "closed"
	KeyPinLevel       = "pin_level"
	KeyBytesSent      = "bytes_sent"
)

// Message map fields.
const (
	FieldKey   = "key"
	FieldSize  = "size"
	FieldCents = "cents"
)
