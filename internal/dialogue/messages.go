package dialogue

import (
	"fmt"
	"strings"

	"github.com/xenking/sazon-bot/internal/confirm"
	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
)

const welcomeText = `¡Bienvenido a Sazón Bot, el lugar donde todos tus antojos de almuerzo se hacen realidad!
Comienza a chatear con Sazón Bot y descubre qué puedes pedir, cuánto cuesta y cómo realizar tu pago. ¡Estamos aquí para ayudarte a disfrutar del mejor almuerzo!`

const (
	msgNoItems        = "No encontré platos del menú en tu mensaje. Indica la cantidad y el plato, por ejemplo: 2 ceviche y 1 lomo saltado."
	msgAskConfirm     = "¿Estás de acuerdo con el pedido?"
	msgConfirmHint    = "Por favor, responde «sí» para confirmar el pedido o «no» para cambiarlo."
	msgNoDiscounts    = "El monto total del pedido no acepta descuentos ni ajustes de precio."
	msgAddSide        = "Si deseas añadir una bebida o postre, escríbelo ahora (por ejemplo: 1 chicha morada)."
	msgDeclined       = "Entendido, he descartado el pedido. ¿Qué te gustaría pedir?"
	msgAskDistrict    = "¿A qué distrito deseas que enviemos tu pedido?"
	msgAskPayment     = "¿Cuál será tu método de pago? (tarjeta de crédito, efectivo u otra opción disponible)"
	msgServiceFailure = "Lo siento, no pude procesar tu mensaje en este momento. Por favor, inténtalo de nuevo."
	msgNotSaved       = "Lo siento, tu pedido no pudo ser guardado. Por favor, vuelve a indicar tu método de pago para intentarlo de nuevo."
	msgNotConfirmed   = "Lo siento, no pude confirmar tu pedido. Por favor, vuelve a indicar tu método de pago."
	msgThanks         = "¡Gracias por tu pedido!"
	msgLimit          = "Lamento informarte que el límite máximo de cantidad por producto es de 100 unidades. Por favor, reduce la cantidad para procesar tu pedido."
)

func msgDishNotFound(name string) string {
	return fmt.Sprintf("Lo siento, «%s» no está en nuestro menú. Solo podemos preparar los platos de la carta.", name)
}

func msgBadQuantity(token string) string {
	return fmt.Sprintf("La cantidad «%s» no es válida. Indica un número entero entre %d y %d.", token, order.MinQuantity, order.MaxQuantity)
}

func msgDistrictNotFound(name string) string {
	return fmt.Sprintf("Lo siento, no repartimos en «%s».", name)
}

func msgAskDelivery(pickupLocation string) string {
	return fmt.Sprintf("¿Deseas recoger tu pedido en nuestro local ubicado en %s o prefieres entrega a domicilio?", pickupLocation)
}

func msgPickup(pickupLocation string) string {
	return fmt.Sprintf("Te esperamos en nuestro local ubicado en %s.", pickupLocation)
}

func msgDelivery(district string) string {
	return fmt.Sprintf("Perfecto, enviaremos tu pedido a %s.", district)
}

// MenuTable renders the dishes of the day as a markdown table.
func MenuTable(c *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("| **Plato** | **Descripción** | **Precio** |\n")
	b.WriteString("|-----------|-----------------|-------------|\n")
	n := 0
	for dish := range c.DishesIn(catalog.CategoryDish) {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", dish.Name, dish.Description, catalog.FormatPrice(dish.Price))
		n++
	}
	if n == 0 {
		return "No hay platos disponibles."
	}
	return b.String()
}

// SideList renders drinks or desserts as a plain list.
func SideList(c *catalog.Catalog, cat catalog.Category) string {
	var b strings.Builder
	for dish := range c.DishesIn(cat) {
		fmt.Fprintf(&b, "%s: %s - %s\n", dish.Name, dish.Description, catalog.FormatPrice(dish.Price))
	}
	return b.String()
}

// DistrictList renders the delivery districts, one per line.
func DistrictList(c *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("Los distritos de reparto son:\n")
	for d := range c.Districts() {
		fmt.Fprintf(&b, "**%s**\n", d.Name)
	}
	return b.String()
}

// Welcome is the first assistant message of every conversation.
func Welcome(c *catalog.Catalog) string {
	return welcomeText + "\n\n¿Qué te puedo ofrecer?\n\nEste es el menú del día:\n\n" + MenuTable(c)
}

func menuReminder(c *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("Este es el menú del día:\n\n")
	b.WriteString(MenuTable(c))
	if drinks := SideList(c, catalog.CategoryDrink); drinks != "" {
		b.WriteString("\nBebidas:\n")
		b.WriteString(drinks)
	}
	if desserts := SideList(c, catalog.CategoryDessert); desserts != "" {
		b.WriteString("\nPostres:\n")
		b.WriteString(desserts)
	}
	return b.String()
}

func summary(d *order.Draft) string {
	return "Este es el resumen de tu pedido:\n\n" + confirm.ItemsTable(d.Items) + "\n" +
		msgNoDiscounts + "\n" + msgAddSide + "\n\n" + msgAskConfirm
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
