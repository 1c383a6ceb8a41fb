package domain

// QrcodeState enumerates the polling states of a scan-to-login flow.
// Values are wire-visible integers polled by clients.
type QrcodeState int

const (
	QrcodeStateNotFound   QrcodeState = -1
	QrcodeStateWaiting    QrcodeState = 0
	QrcodeStateScanned    QrcodeState = 1
	QrcodeStateAuthorized QrcodeState = 2
	QrcodeStateCanceled   QrcodeState = 3
	QrcodeStateExpired    QrcodeState = 4
)

// String returns the state name for logs and metrics labels.
func (s QrcodeState) String() string {
	switch s {
	case QrcodeStateWaiting:
		return "waiting"
	case QrcodeStateScanned:
		return "scanned"
	case QrcodeStateAuthorized:
		return "authorized"
	case QrcodeStateCanceled:
		return "canceled"
	case QrcodeStateExpired:
		return "expired"
	default:
		return "not_found"
	}
}

// Known reports whether the value is one of the enumerated states.
func (s QrcodeState) Known() bool {
	return s >= QrcodeStateWaiting && s <= QrcodeStateExpired
}

// QrcodeTicket is the provider-issued QR artifact returned at creation.
// The scene value doubles as the polling key.
type QrcodeTicket struct {
	SceneID       string `json:"sceneId"`
	URL           string `json:"qrCodeUrl"`
	Ticket        string `json:"ticket"`
	ExpireSeconds int    `json:"expireSeconds"`
}
