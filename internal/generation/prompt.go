package generation

import (
	"fmt"
	"strings"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
)

const noItemsAnswer = "NINGUNO"

const normalizeSystemPrompt = "Eres un asistente que reescribe pedidos de comida. Responde solo con las líneas pedidas, sin explicaciones."

func normalizePrompt(utterance string) string {
	return fmt.Sprintf(`Extrae la cantidad y el plato del siguiente mensaje del cliente: '%s'.
Escribe una línea por plato con el formato "<cantidad> <plato>", usando números para la cantidad (por ejemplo "dos platos de ceviche" es "2 ceviche").
Si el mensaje no pide ningún plato, responde solo %s.`, utterance, noItemsAnswer)
}

const extractSystemPrompt = "Eres un asistente que extrae el pedido confirmado en JSON únicamente con datos explícitos. Responde solo con un JSON o un diccionario vacío."

func extractPrompt(reply string) string {
	return fmt.Sprintf(`Extrae únicamente la información visible y explícita del pedido confirmado de la siguiente respuesta: '%s'.
Si el pedido está confirmado en el texto, devuelve el resultado en formato JSON con las siguientes claves:
- 'Platos': una lista de platos donde cada plato incluye plato, cantidad y precio_total.
- 'Total': el monto total del pedido.
- 'metodo de pago': el método de pago elegido por el cliente.
- 'lugar_entrega': el lugar de entrega ya sea en el local o en el distrito especificado por el cliente.
- 'timestamp_confirmacion': la marca de tiempo del momento en que se confirma el pedido.
Si algún campo no aparece explícitamente en la respuesta, asigna el valor null a ese campo.
Si el pedido no está confirmado explícitamente en la respuesta, devuelve un diccionario vacío.
No generes, interpretes, ni asumas valores que no estén presentes en la respuesta.`, reply)
}

// SystemPrompt describes the restaurant, its menu and its rules to the
// model. It opens every conversation history.
func SystemPrompt(c *catalog.Catalog, name, pickupLocation string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Eres el bot de pedidos de %s, amable y servicial. ", name)
	b.WriteString("Ayudas a los clientes a hacer sus pedidos y siempre confirmas que solo pidan platos que están en el menú oficial.\n")

	b.WriteString("Aquí está nuestra carta:\n")
	writeItems(&b, c, catalog.CategoryDish)
	b.WriteString("Bebidas:\n")
	writeItems(&b, c, catalog.CategoryDrink)
	b.WriteString("Postres:\n")
	writeItems(&b, c, catalog.CategoryDessert)

	b.WriteString("Los distritos de reparto son:\n")
	for dist := range c.Districts() {
		fmt.Fprintf(&b, "**%s**\n", dist.Name)
	}

	fmt.Fprintf(&b, `Explica que no podemos preparar platos fuera del menú.
Si la cantidad solicitada de un plato es mayor que %d, indica que el límite máximo de cantidad por producto es de %d unidades.
Si el pedido es para recoger, invita al cliente a acercarse a nuestro local ubicado en %s.
Usa solo español peruano en tus respuestas.
Aclara que el monto total del pedido no acepta descuentos ni ajustes de precio.`,
		order.MaxQuantity, order.MaxQuantity, pickupLocation)
	return b.String()
}

func writeItems(b *strings.Builder, c *catalog.Catalog, cat catalog.Category) {
	for dish := range c.DishesIn(cat) {
		fmt.Fprintf(b, "%s: %s - %s soles\n", dish.Name, dish.Description, dish.Price.StringFixed(2))
	}
}
