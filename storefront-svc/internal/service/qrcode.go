package service

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// ReceiptQR encodes a link to the order's page on the storefront.
type ReceiptQR struct {
	PublicURL string
}

func (g ReceiptQR) Link(orderID int) string {
	return fmt.Sprintf("%s/orders/%d", strings.TrimRight(g.PublicURL, "/"), orderID)
}

func (g ReceiptQR) Generate(orderID int) ([]byte, error) {
	return qrcode.Encode(g.Link(orderID), qrcode.Medium, 256)
}

var _ QRGenerator = ReceiptQR{}
