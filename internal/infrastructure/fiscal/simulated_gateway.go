package fiscal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
)

// ErrFormatUnavailable el gateway simulado no produce la representación pedida.
var ErrFormatUnavailable = errors.New("fiscal: formato no disponible")

// SimulatedGateway autoridad fiscal en memoria para desarrollo y pruebas.
// Idempotente por referencia: una referencia autorizada devuelve siempre el mismo resultado.
type SimulatedGateway struct {
	mu         sync.Mutex
	builder    *XMLBuilderService
	records    map[string]*simulatedRecord
	calls      map[string]int
	seq        int64
	failNext   int
	rejectNext string
}

type simulatedRecord struct {
	result    ports.IssueResult
	document  []byte
	cancelled bool
}

var _ ports.FiscalGateway = (*SimulatedGateway)(nil)

// NewSimulatedGateway crea el gateway simulado.
func NewSimulatedGateway(issuer IssuerInfo) *SimulatedGateway {
	return &SimulatedGateway{
		builder: NewXMLBuilderService(issuer),
		records: make(map[string]*simulatedRecord),
		calls:   make(map[string]int),
	}
}

// FailNext hace que las próximas n emisiones fallen como timeout.
func (g *SimulatedGateway) FailNext(n int) {
	g.mu.Lock()
	g.failNext = n
	g.mu.Unlock()
}

// RejectNext hace que la próxima emisión sea rechazada con el mensaje dado.
func (g *SimulatedGateway) RejectNext(message string) {
	g.mu.Lock()
	g.rejectNext = message
	g.mu.Unlock()
}

// Calls número de intentos de emisión recibidos para la referencia.
func (g *SimulatedGateway) Calls(externalReference string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[externalReference]
}

func (g *SimulatedGateway) Issue(ctx context.Context, externalReference string, payload ports.FiscalPayload) (*ports.IssueResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[externalReference]++

	if rec, ok := g.records[externalReference]; ok {
		res := rec.result
		return &res, nil
	}
	if g.failNext > 0 {
		g.failNext--
		return nil, fmt.Errorf("fiscal simulado: %w", context.DeadlineExceeded)
	}
	if g.rejectNext != "" {
		msg := g.rejectNext
		g.rejectNext = ""
		return &ports.IssueResult{Status: ports.IssueStatusRejected, Message: msg}, nil
	}

	doc, err := g.builder.Build(payload, externalReference)
	if err != nil {
		return &ports.IssueResult{Status: ports.IssueStatusRejected, Message: err.Error()}, nil
	}
	g.seq++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", externalReference, g.seq)))
	rec := &simulatedRecord{
		result: ports.IssueResult{
			Status:           ports.IssueStatusAuthorized,
			AuthorizationKey: hex.EncodeToString(sum[:]),
			DocumentNumber:   fmt.Sprintf("%06d", g.seq),
		},
		document: doc,
	}
	g.records[externalReference] = rec
	res := rec.result
	return &res, nil
}

func (g *SimulatedGateway) Cancel(ctx context.Context, externalReference, justification string) (*ports.CancelResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[externalReference]
	if !ok {
		return &ports.CancelResult{Status: ports.CancelStatusRejected, Message: "documento no emitido"}, nil
	}
	rec.cancelled = true
	return &ports.CancelResult{Status: ports.CancelStatusCancelled}, nil
}

// FetchDocument entrega el XML generado; el PDF no existe en modo simulado.
func (g *SimulatedGateway) FetchDocument(ctx context.Context, externalReference, format string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[externalReference]
	if !ok {
		return nil, fmt.Errorf("fiscal simulado: referencia %s desconocida", externalReference)
	}
	if format != ports.DocumentFormatXML {
		return nil, ErrFormatUnavailable
	}
	out := make([]byte, len(rec.document))
	copy(out, rec.document)
	return out, nil
}
