package fiscal

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// Algoritmos XMLDSig usados en la firma.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// Signer firma un documento fiscal con el certificado del emisor.
type Signer interface {
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}

// DigitalSignatureService firma enveloped: ds:Signature queda como último hijo de la raíz.
type DigitalSignatureService struct{}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

var _ Signer = (*DigitalSignatureService)(nil)

// Sign calcula el digest C14N del documento, firma el SignedInfo con RSA-SHA256 e inyecta la firma.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("fiscal: XML vacío")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("fiscal: el certificado debe incluir llave privada RSA")
	}
	leaf, err := leafOf(cert)
	if err != nil {
		return nil, err
	}

	digest, err := CanonicalDigest(xmlBytes)
	if err != nil {
		return nil, err
	}

	signedInfo := buildSignedInfo(digest)
	signedInfoBytes, err := serializeElement(signedInfo)
	if err != nil {
		return nil, err
	}
	canonicalSignedInfo, err := canonicalize(signedInfoBytes)
	if err != nil {
		return nil, fmt.Errorf("fiscal: canonicalizar SignedInfo: %w", err)
	}
	hash := sha256.Sum256(canonicalSignedInfo)
	signature, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, hash[:])
	if err != nil {
		return nil, fmt.Errorf("fiscal: firmar SignedInfo: %w", err)
	}

	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NamespaceDS)
	sig.AddChild(signedInfo)
	sig.CreateElement("ds:SignatureValue").SetText(base64.StdEncoding.EncodeToString(signature))
	x509Data := sig.CreateElement("ds:KeyInfo").CreateElement("ds:X509Data")
	x509Data.CreateElement("ds:X509Certificate").SetText(base64.StdEncoding.EncodeToString(leaf.Raw))
	issuerSerial := x509Data.CreateElement("ds:X509IssuerSerial")
	issuerSerial.CreateElement("ds:X509IssuerName").SetText(leaf.Issuer.String())
	issuerSerial.CreateElement("ds:X509SerialNumber").SetText(leaf.SerialNumber.String())

	return injectSignature(xmlBytes, sig)
}

// CanonicalDigest devuelve el SHA-256 en Base64 de la forma canónica del documento.
func CanonicalDigest(xmlBytes []byte) (string, error) {
	canonical, err := canonicalize(xmlBytes)
	if err != nil {
		return "", fmt.Errorf("fiscal: canonicalizar documento: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// canonicalize aplica C14N inclusivo; la declaración XML no forma parte de la forma canónica.
func canonicalize(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("<?xml")) {
		if end := bytes.Index(data, []byte("?>")); end >= 0 {
			data = bytes.TrimSpace(data[end+2:])
		}
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(digestB64 string) *etree.Element {
	si := etree.NewElement("ds:SignedInfo")
	si.CreateAttr("xmlns:ds", NamespaceDS)
	si.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", AlgC14N)
	si.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", AlgRSASHA256)
	ref := si.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "#"+DocumentElementID)
	transforms := ref.CreateElement("ds:Transforms")
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", TransformEnveloped)
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", AlgC14N)
	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgSHA256)
	ref.CreateElement("ds:DigestValue").SetText(digestB64)
	return si
}

func serializeElement(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToBytes()
}

func injectSignature(xmlBytes []byte, sig *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("fiscal: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("fiscal: documento sin raíz")
	}
	if root.SelectAttrValue("Id", "") != DocumentElementID {
		return nil, fmt.Errorf("fiscal: la raíz no tiene Id=%q", DocumentElementID)
	}
	root.AddChild(sig)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("fiscal: serializar XML firmado: %w", err)
	}
	return out, nil
}
