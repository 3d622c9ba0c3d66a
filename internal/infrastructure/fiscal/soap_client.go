package fiscal

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
)

const (
	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	soapNSService  = "urn:stockledger:fiscal:servicio"
	soapActionBase = soapNSService + "/"

	opEmitir   = "EmitirDocumento"
	opCancelar = "CancelarDocumento"
	opObtener  = "ObtenerDocumento"

	maxResponseBytes = 4 << 20
)

// Estados devueltos por el servicio de la autoridad.
const (
	estadoAutorizado = "Autorizado"
	estadoDuplicado  = "Duplicado"
	estadoRechazado  = "Rechazado"
	estadoAnulado    = "Anulado"
)

// SOAPConfig parámetros del cliente SOAP.
type SOAPConfig struct {
	Endpoint    string
	Issuer      IssuerInfo
	Certificate *tls.Certificate // nil: sin firma ni TLS cliente
	HTTPTimeout time.Duration
}

// SOAPGatewayClient implementa ports.FiscalGateway contra el servicio SOAP de la autoridad.
type SOAPGatewayClient struct {
	endpoint   string
	httpClient *http.Client
	builder    *XMLBuilderService
	signer     Signer
	cert       *tls.Certificate
	issuer     IssuerInfo
}

var _ ports.FiscalGateway = (*SOAPGatewayClient)(nil)

// NewSOAPGatewayClient construye el cliente. El certificado se usa para firmar y como certificado TLS cliente.
func NewSOAPGatewayClient(cfg SOAPConfig) *SOAPGatewayClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Certificate != nil {
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{*cfg.Certificate},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return &SOAPGatewayClient{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		builder:    NewXMLBuilderService(cfg.Issuer),
		signer:     NewDigitalSignatureService(),
		cert:       cfg.Certificate,
		issuer:     cfg.Issuer,
	}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"s:Envelope"`
	XmlnsS  string   `xml:"xmlns:s,attr"`
	Header  struct{} `xml:"s:Header"`
	Body    soapBody `xml:"s:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "s:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type emitirDocumento struct {
	XMLName       xml.Name `xml:"EmitirDocumento"`
	Xmlns         string   `xml:"xmlns,attr"`
	Referencia    string   `xml:"referencia"`
	NombreArchivo string   `xml:"nombreArchivo"`
	Contenido     string   `xml:"contenido"` // ZIP en Base64
}

type cancelarDocumento struct {
	XMLName       xml.Name `xml:"CancelarDocumento"`
	Xmlns         string   `xml:"xmlns,attr"`
	Referencia    string   `xml:"referencia"`
	Justificacion string   `xml:"justificacion"`
}

type obtenerDocumento struct {
	XMLName    xml.Name `xml:"ObtenerDocumento"`
	Xmlns      string   `xml:"xmlns,attr"`
	Referencia string   `xml:"referencia"`
	Formato    string   `xml:"formato"`
}

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Emitir   *operationResponse `xml:"EmitirDocumentoResponse"`
	Cancelar *operationResponse `xml:"CancelarDocumentoResponse"`
	Obtener  *operationResponse `xml:"ObtenerDocumentoResponse"`
	Fault    *soapFault         `xml:"Fault"`
}

type operationResponse struct {
	Result operationResult `xml:"Resultado"`
}

type operationResult struct {
	Estado            string   `xml:"Estado"`
	ClaveAutorizacion string   `xml:"ClaveAutorizacion"`
	NumeroDocumento   string   `xml:"NumeroDocumento"`
	Contenido         string   `xml:"Contenido"`
	Mensajes          []string `xml:"Mensajes>string"`
}

func (r operationResult) message() string {
	return strings.Join(r.Mensajes, "; ")
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

func (f *soapFault) message() string {
	if f.FaultCode == "" {
		return f.FaultString
	}
	return fmt.Sprintf("%s: %s", f.FaultCode, f.FaultString)
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// Issue arma, firma y empaqueta el documento y lo envía con EmitirDocumento.
func (c *SOAPGatewayClient) Issue(ctx context.Context, externalReference string, payload ports.FiscalPayload) (*ports.IssueResult, error) {
	xmlBytes, err := c.builder.Build(payload, externalReference)
	if err != nil {
		return nil, err
	}
	if c.cert != nil {
		if xmlBytes, err = c.signer.Sign(xmlBytes, *c.cert); err != nil {
			return nil, err
		}
	}
	name := DocumentFileName(c.issuer, payload.OrderNumber)
	zipBytes, err := CompressXMLToZip(xmlBytes, name)
	if err != nil {
		return nil, err
	}

	body, err := c.call(ctx, opEmitir, emitirDocumento{
		Xmlns:         soapNSService,
		Referencia:    externalReference,
		NombreArchivo: name + ".zip",
		Contenido:     base64.StdEncoding.EncodeToString(zipBytes),
	})
	if err != nil {
		return nil, err
	}
	if body.Fault != nil {
		return &ports.IssueResult{Status: ports.IssueStatusRejected, Message: body.Fault.message()}, nil
	}
	if body.Emitir == nil {
		return nil, fmt.Errorf("fiscal: respuesta sin EmitirDocumentoResponse")
	}
	res := body.Emitir.Result
	switch res.Estado {
	case estadoAutorizado, estadoDuplicado:
		return &ports.IssueResult{
			Status:           ports.IssueStatusAuthorized,
			AuthorizationKey: res.ClaveAutorizacion,
			DocumentNumber:   res.NumeroDocumento,
			Message:          res.message(),
		}, nil
	case estadoRechazado:
		return &ports.IssueResult{Status: ports.IssueStatusRejected, Message: res.message()}, nil
	default:
		return nil, fmt.Errorf("fiscal: estado de emisión desconocido %q", res.Estado)
	}
}

// Cancel solicita la anulación con CancelarDocumento.
func (c *SOAPGatewayClient) Cancel(ctx context.Context, externalReference, justification string) (*ports.CancelResult, error) {
	body, err := c.call(ctx, opCancelar, cancelarDocumento{
		Xmlns:         soapNSService,
		Referencia:    externalReference,
		Justificacion: justification,
	})
	if err != nil {
		return nil, err
	}
	if body.Fault != nil {
		return &ports.CancelResult{Status: ports.CancelStatusRejected, Message: body.Fault.message()}, nil
	}
	if body.Cancelar == nil {
		return nil, fmt.Errorf("fiscal: respuesta sin CancelarDocumentoResponse")
	}
	res := body.Cancelar.Result
	switch res.Estado {
	case estadoAnulado:
		return &ports.CancelResult{Status: ports.CancelStatusCancelled, Message: res.message()}, nil
	case estadoRechazado:
		return &ports.CancelResult{Status: ports.CancelStatusRejected, Message: res.message()}, nil
	default:
		return nil, fmt.Errorf("fiscal: estado de anulación desconocido %q", res.Estado)
	}
}

// FetchDocument descarga la representación xml o pdf con ObtenerDocumento.
func (c *SOAPGatewayClient) FetchDocument(ctx context.Context, externalReference, format string) ([]byte, error) {
	body, err := c.call(ctx, opObtener, obtenerDocumento{
		Xmlns:      soapNSService,
		Referencia: externalReference,
		Formato:    format,
	})
	if err != nil {
		return nil, err
	}
	if body.Fault != nil {
		return nil, fmt.Errorf("fiscal: documento no disponible: %s", body.Fault.message())
	}
	if body.Obtener == nil || body.Obtener.Result.Contenido == "" {
		return nil, fmt.Errorf("fiscal: respuesta sin contenido")
	}
	content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body.Obtener.Result.Contenido))
	if err != nil {
		return nil, fmt.Errorf("fiscal: decodificar contenido: %w", err)
	}
	return content, nil
}

func (c *SOAPGatewayClient) call(ctx context.Context, operation string, content interface{}) (*soapResponseBody, error) {
	envelope := soapEnvelope{XmlnsS: soapNS, Body: soapBody{Content: content}}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(envelope); err != nil {
		return nil, fmt.Errorf("fiscal: serializar sobre SOAP: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("fiscal: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+soapActionBase+operation+`"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fiscal: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("fiscal: leer respuesta %s: %w", operation, err)
	}
	return parseResponse(operation, resp.StatusCode, raw)
}

// parseResponse distingue faults SOAP (respuesta de negocio) de fallas de transporte.
func parseResponse(operation string, status int, raw []byte) (*soapResponseBody, error) {
	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		if status >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("fiscal: %s: HTTP %d", operation, status)
		}
		return nil, fmt.Errorf("fiscal: %s: respuesta inválida: %w", operation, err)
	}
	if env.Body.Fault != nil {
		return &env.Body, nil
	}
	if status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fiscal: %s: HTTP %d", operation, status)
	}
	return &env.Body, nil
}
