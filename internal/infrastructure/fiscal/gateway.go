package fiscal

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
)

// Ambientes de la autoridad fiscal.
const (
	// AppEnvDev no contacta a la autoridad: usa el gateway simulado.
	AppEnvDev  = "dev"
	AppEnvTest = "test"
	AppEnvProd = "prod"
)

// GatewayConfig selección y parámetros del gateway.
type GatewayConfig struct {
	AppEnv       string
	Endpoint     string
	CertPath     string
	CertPassword string
	Issuer       IssuerInfo
	HTTPTimeout  time.Duration
}

// NewGateway devuelve el simulado en dev y el cliente SOAP en test/prod.
func NewGateway(cfg GatewayConfig, log zerolog.Logger) (ports.FiscalGateway, error) {
	switch cfg.AppEnv {
	case "", AppEnvDev:
		log.Info().Msg("gateway fiscal simulado")
		return NewSimulatedGateway(cfg.Issuer), nil
	case AppEnvTest, AppEnvProd:
	default:
		return nil, fmt.Errorf("fiscal: ambiente desconocido %q", cfg.AppEnv)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("fiscal: FISCAL_ENDPOINT requerido en ambiente %s", cfg.AppEnv)
	}
	var cert *tls.Certificate
	if cfg.CertPath != "" {
		c, err := LoadCertificate(cfg.CertPath, cfg.CertPassword)
		if err != nil {
			return nil, err
		}
		cert = &c
	} else if cfg.AppEnv == AppEnvProd {
		return nil, fmt.Errorf("fiscal: certificado requerido en producción")
	}
	log.Info().Str("env", cfg.AppEnv).Str("endpoint", cfg.Endpoint).Bool("firma", cert != nil).Msg("gateway fiscal SOAP")
	return NewSOAPGatewayClient(SOAPConfig{
		Endpoint:    cfg.Endpoint,
		Issuer:      cfg.Issuer,
		Certificate: cert,
		HTTPTimeout: cfg.HTTPTimeout,
	}), nil
}
