package processors

// Session composes everything the engine needs from one platform on top of
// a single ledger snapshot.
type Session struct {
	*Classifier
	*WalletValuator
	ledger *Ledger
}

func NewSession(ledger *Ledger, dialect Dialect, rates RateProvider, workers int) *Session {
	return &Session{
		Classifier:     NewClassifier(ledger, dialect),
		WalletValuator: NewWalletValuator(ledger, rates, workers),
		ledger:         ledger,
	}
}

var _ Platform = (*Session)(nil)

func (s *Session) Name() string { return s.ledger.Platform() }

func (s *Session) Ledger() *Ledger { return s.ledger }
