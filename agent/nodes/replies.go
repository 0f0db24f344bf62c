package orchestratornode

import (
	"errors"
	"fmt"
	"math"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
)

const (
	FallbackText = "Perdón, en este momento no puedo responderte 🙏. Probá de nuevo en unos minutos."

	unknownActionText = "No entendí bien qué querés hacer. Puedo buscar productos, mostrarte uno por su ID o ayudarte con tu carrito 😊"
)

var fieldLabels = map[string]string{
	"id":        "el ID del producto",
	"qty":       "la cantidad",
	"query":     "qué producto buscás",
	"more":      "si querés ver más resultados",
	"arguments": "los datos del pedido",
}

// Clarification asks the user for the fields a rejected tool call lacked
// instead of guessing defaults.
func Clarification(verr *contractx.ValidationError) string {
	if verr == nil || verr.Unknown {
		return unknownActionText
	}

	var b strings.Builder
	if len(verr.Missing) > 0 {
		fmt.Fprintf(&b, "Para continuar necesito %s. ¿Me lo indicás?", joinLabels(verr.Missing))
	}
	if len(verr.Invalid) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "No pude interpretar %s. ¿Me lo escribís de nuevo? Por ejemplo: 'agregá 10 unidades del producto 12'.", joinLabels(verr.Invalid))
	}
	if b.Len() == 0 {
		return unknownActionText
	}
	return b.String()
}

// Apology is the user-facing text for a failed backend operation.
func Apology(call contractx.ToolInvocation, err error) string {
	notFound := errors.Is(err, contractx.ErrNotFound)

	switch call.Name {
	case contractx.ToolGetProductByID, contractx.ToolAddToCart, contractx.ToolUpdateCartItem:
		if notFound {
			if id, ok := productID(call.Args); ok {
				return fmt.Sprintf("No encontré el producto con ID %d.", id)
			}
			return "No encontré ese producto."
		}
		if call.Name == contractx.ToolGetProductByID {
			return "No pude consultar ese producto. Probá de nuevo en un rato."
		}
		return "No pude actualizar tu carrito 🛒. Probá de nuevo en un rato."
	case contractx.ToolSearchProducts:
		return "Hubo un error buscando los productos. Probá de nuevo en un rato."
	case contractx.ToolViewCart:
		if notFound {
			return "No encontré tu carrito 🛒"
		}
		return "No pude cargar tu carrito 🛒. Probá de nuevo en un rato."
	default:
		return FallbackText
	}
}

func productID(args map[string]any) (int64, bool) {
	switch v := args["id"].(type) {
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func joinLabels(fields []string) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		if l, ok := fieldLabels[f]; ok {
			labels = append(labels, l)
			continue
		}
		labels = append(labels, f)
	}
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " y " + labels[len(labels)-1]
	}
}
