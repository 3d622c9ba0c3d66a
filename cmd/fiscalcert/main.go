// Command fiscalcert verifica que el certificado de firma configurado se pueda cargar
// y muestra su titular y vigencia.
//
//	fiscalcert                       usa FISCAL_CERT_PATH y FISCAL_CERT_PASSWORD
//	fiscalcert -cert a.p12 -pass x   ruta y clave explícitas
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/stockledger-api/internal/infrastructure/fiscal"
	"github.com/jhoicas/stockledger-api/pkg/config"
)

func main() {
	certPath := flag.String("cert", "", "ruta del certificado (.p12/.pfx o PEM)")
	certPass := flag.String("pass", "", "contraseña del .p12")
	flag.Parse()

	if *certPath == "" {
		cfg, err := config.Load()
		if err != nil {
			fail("configuración: %v", err)
		}
		*certPath, *certPass = cfg.Fiscal.CertPath, cfg.Fiscal.CertPassword
	}
	if *certPath == "" {
		fail("sin certificado: use -cert o FISCAL_CERT_PATH")
	}

	fmt.Printf("Certificado: %s\n", *certPath)
	cert, err := fiscal.LoadCertificate(*certPath, *certPass)
	if err != nil {
		fail("no se pudo cargar: %v", err)
	}
	info, err := fiscal.DescribeCertificate(cert)
	if err != nil {
		fail("certificado sin hoja X.509: %v", err)
	}

	fmt.Printf("Titular:     %s\n", info.Subject)
	fmt.Printf("Emisor:      %s\n", info.Issuer)
	fmt.Printf("Serial:      %s\n", info.Serial)
	fmt.Printf("Vigencia:    %s → %s\n", info.NotBefore.Format(time.DateOnly), info.NotAfter.Format(time.DateOnly))
	fmt.Printf("SHA-256:     %s\n", info.Digest)

	now := time.Now()
	switch {
	case now.Before(info.NotBefore):
		fail("el certificado aún no es válido")
	case now.After(info.NotAfter):
		fail("el certificado venció el %s", info.NotAfter.Format(time.DateOnly))
	case info.NotAfter.Sub(now) < 30*24*time.Hour:
		fmt.Printf("Atención: vence en %d días\n", int(info.NotAfter.Sub(now).Hours()/24))
	}
	fmt.Println("OK")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
