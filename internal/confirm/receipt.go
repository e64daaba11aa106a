package confirm

import (
	"strconv"
	"strings"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
)

// RenderReceipt renders the confirmation message for o. The output is the
// format TextExtractor reads back.
func RenderReceipt(o *order.ConfirmedOrder) string {
	var b strings.Builder
	b.WriteString("Pedido confirmado:\n\n")
	b.WriteString(ItemsTable(o.Items))
	b.WriteString("\nMétodo de pago: ")
	b.WriteString(o.PaymentMethod)
	b.WriteString("\nEntrega: ")
	b.WriteString(o.DeliveryTarget())
	b.WriteString("\nConfirmado: ")
	b.WriteString(o.ConfirmedAt.Format(TimestampLayout))
	b.WriteString(" (")
	b.WriteString(o.ConfirmedAt.Location().String())
	b.WriteString(")\n")
	return b.String()
}

// ItemsTable renders line items as a markdown table with a bold total row.
func ItemsTable(items []order.LineItem) string {
	var b strings.Builder
	b.WriteString("| **Plato** | **Cantidad** | **Precio Total** |\n")
	b.WriteString("|-----------|--------------|------------------|\n")
	for _, item := range items {
		b.WriteString("| ")
		b.WriteString(item.DishName)
		b.WriteString(" | ")
		b.WriteString(strconv.Itoa(item.Quantity))
		b.WriteString(" | ")
		b.WriteString(catalog.FormatPrice(item.LineTotal))
		b.WriteString(" |\n")
	}
	b.WriteString("| **Total** |  | **")
	b.WriteString(catalog.FormatPrice(order.Total(items)))
	b.WriteString("** |\n")
	return b.String()
}
