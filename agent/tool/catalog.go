package tool

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	"github.com/xeipuuv/gojsonschema"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
)

type Param struct {
	Name     string
	Type     ParamType
	Desc     string
	Required bool
	// Minimum applies to integer params only.
	Minimum *int
}

// Declaration is the single source of truth for one tool the model may
// request.
type Declaration struct {
	Name   string
	Desc   string
	Params []Param
}

func intPtr(v int) *int { return &v }

// Declarations returns the commerce tool declarations in a stable order.
func Declarations() []Declaration {
	return []Declaration{
		{
			Name: contractx.ToolSearchProducts,
			Desc: "Busca productos del catálogo a partir del término interpretado del usuario. Usa more=true para la página siguiente de la misma búsqueda.",
			Params: []Param{
				{Name: "query", Type: TypeString, Desc: "Término de búsqueda, por ejemplo 'blusa azul'", Required: true},
				{Name: "more", Type: TypeBoolean, Desc: "true para ver más resultados de la búsqueda anterior"},
			},
		},
		{
			Name: contractx.ToolGetProductByID,
			Desc: "Obtiene el detalle de un solo producto por su ID.",
			Params: []Param{
				{Name: "id", Type: TypeInteger, Desc: "ID del producto", Required: true, Minimum: intPtr(1)},
			},
		},
		{
			Name: contractx.ToolAddToCart,
			Desc: "Agrega una cantidad de un producto al carrito del usuario. Si ya estaba, suma la cantidad.",
			Params: []Param{
				{Name: "id", Type: TypeInteger, Desc: "ID del producto", Required: true, Minimum: intPtr(1)},
				{Name: "qty", Type: TypeInteger, Desc: "Cantidad a agregar", Required: true},
			},
		},
		{
			Name: contractx.ToolViewCart,
			Desc: "Muestra los productos actuales del carrito del usuario con sus precios y el total.",
		},
		{
			Name: contractx.ToolUpdateCartItem,
			Desc: "Reemplaza la cantidad de un producto del carrito. Cantidad 0 lo elimina.",
			Params: []Param{
				{Name: "id", Type: TypeInteger, Desc: "ID del producto", Required: true, Minimum: intPtr(1)},
				{Name: "qty", Type: TypeInteger, Desc: "Nueva cantidad total", Required: true, Minimum: intPtr(0)},
			},
		},
	}
}

// Catalog holds the compiled declarations. It is immutable after NewCatalog.
type Catalog struct {
	order   []string
	decls   map[string]Declaration
	schemas map[string]*gojsonschema.Schema
}

func NewCatalog(decls ...Declaration) (*Catalog, error) {
	if len(decls) == 0 {
		decls = Declarations()
	}

	c := &Catalog{
		order:   make([]string, 0, len(decls)),
		decls:   make(map[string]Declaration, len(decls)),
		schemas: make(map[string]*gojsonschema.Schema, len(decls)),
	}
	for _, d := range decls {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool declaration without name", contractx.ErrValidation)
		}
		if _, dup := c.decls[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tool declaration %s", contractx.ErrValidation, name)
		}

		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.JSONSchema()))
		if err != nil {
			return nil, fmt.Errorf("compile schema for tool=%s: %w", name, err)
		}
		c.order = append(c.order, name)
		c.decls[name] = d
		c.schemas[name] = compiled
	}
	return c, nil
}

func (c *Catalog) Lookup(name string) (Declaration, bool) {
	d, ok := c.decls[name]
	return d, ok
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// ToolInfos converts the declarations to eino tool infos for model binding.
func (c *Catalog) ToolInfos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(c.order))
	for _, name := range c.order {
		d := c.decls[name]
		info := &schema.ToolInfo{Name: d.Name, Desc: d.Desc}
		if len(d.Params) > 0 {
			params := make(map[string]*schema.ParameterInfo, len(d.Params))
			for _, p := range d.Params {
				params[p.Name] = &schema.ParameterInfo{
					Type:     schema.DataType(p.Type),
					Desc:     p.Desc,
					Required: p.Required,
				}
			}
			info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
		}
		infos = append(infos, info)
	}
	return infos
}

// Validate checks inv against its declaration. Failures are returned as
// *contract.ValidationError and must stop the invocation before dispatch.
func (c *Catalog) Validate(inv contractx.ToolInvocation) error {
	compiled, ok := c.schemas[inv.Name]
	if !ok {
		return &contractx.ValidationError{Tool: inv.Name, Unknown: true}
	}

	args := inv.Args
	if args == nil {
		args = map[string]any{}
	}
	result, err := compiled.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &contractx.ValidationError{Tool: inv.Name, Invalid: []string{"arguments"}}
	}
	if result.Valid() {
		return nil
	}

	verr := &contractx.ValidationError{Tool: inv.Name}
	missing := map[string]struct{}{}
	invalid := map[string]struct{}{}
	for _, re := range result.Errors() {
		if re.Type() == "required" {
			if prop, ok := re.Details()["property"].(string); ok {
				missing[prop] = struct{}{}
				continue
			}
		}
		invalid[re.Field()] = struct{}{}
	}
	verr.Missing = sortedKeys(missing)
	verr.Invalid = sortedKeys(invalid)
	return verr
}

// JSONSchema renders the declaration as a draft-07 object schema.
func (d Declaration) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Minimum != nil && p.Type == TypeInteger {
			prop["minimum"] = *p.Minimum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	out := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
