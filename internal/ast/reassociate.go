package ast

// Reassociate rebuilds the right-recursive operator chains produced by the
// parser using conventional precedence: OR/XOR, AND, NOT, comparisons,
// additive and ||, multiplicative, ^, then prefix - and +. Operators of equal
// precedence associate to the left, except ^. Group nodes are boundaries:
// their contents are reassociated on their own and never merged with the
// surrounding chain. "x BETWEEN lo AND hi" becomes Binary{BETWEEN, x, List{lo, hi}}.
//
// The parser never applies this pass itself.
func Reassociate(n Node) Node {
	switch n := n.(type) {
	case *Binary, *Unary:
		var items []chainItem
		flatten(n, &items)
		c := &climber{items: items}
		return c.expr(precLowest)
	case *Clause:
		return &Clause{Keyword: n.Keyword, Body: reassociateOrNil(n.Body)}
	case *Call:
		return &Call{Name: n.Name, Argument: Reassociate(n.Argument).(*List)}
	case *List:
		elems := make([]Node, len(n.Elements))
		for i, e := range n.Elements {
			elems[i] = Reassociate(e)
		}
		return &List{Elements: elems}
	case *Group:
		return &Group{Inner: Reassociate(n.Inner)}
	default:
		return n
	}
}

func reassociateOrNil(n Node) Node {
	if n == nil {
		return nil
	}
	return Reassociate(n)
}

type chainKind int

const (
	operandItem chainKind = iota
	prefixItem
	infixItem
)

type chainItem struct {
	kind chainKind
	op   string
	node Node
}

func flatten(n Node, items *[]chainItem) {
	switch n := n.(type) {
	case *Binary:
		flatten(n.Left, items)
		*items = append(*items, chainItem{kind: infixItem, op: n.Operator})
		flatten(n.Right, items)
	case *Unary:
		*items = append(*items, chainItem{kind: prefixItem, op: n.Operator})
		flatten(n.Operand, items)
	default:
		*items = append(*items, chainItem{kind: operandItem, node: Reassociate(n)})
	}
}

type climber struct {
	items []chainItem
	pos   int
}

func (c *climber) expr(minPrec int) Node {
	left := c.primary()
	for c.pos < len(c.items) {
		item := c.items[c.pos]
		op, prec := infixPrecedence(item.op)
		if item.kind != infixItem || prec < minPrec {
			break
		}
		c.pos++

		if op == OpBetween || op == OpNotBetween {
			lo := c.expr(precComparison + 1)
			if c.pos < len(c.items) && c.items[c.pos].kind == infixItem && isAnd(c.items[c.pos].op) {
				c.pos++
				hi := c.expr(precComparison + 1)
				left = &Binary{Operator: item.op, Left: left, Right: &List{Elements: []Node{lo, hi}}}
				continue
			}
			left = &Binary{Operator: item.op, Left: left, Right: lo}
			continue
		}

		next := prec + 1
		if op == OpPower {
			next = prec
		}
		right := c.expr(next)
		left = &Binary{Operator: item.op, Left: left, Right: right}
	}
	return left
}

func (c *climber) primary() Node {
	item := c.items[c.pos]
	c.pos++
	if item.kind == prefixItem {
		prec := precUnary
		if op, _ := LookupOperator(item.op); op == OpNot {
			prec = precNot
		}
		return &Unary{Operator: item.op, Operand: c.expr(prec)}
	}
	return item.node
}

func isAnd(op string) bool {
	o, err := LookupOperator(op)
	return err == nil && o == OpAnd
}

func infixPrecedence(text string) (Operator, int) {
	op, err := LookupOperator(text)
	if err != nil {
		return -1, precLowest
	}
	return op, op.Precedence()
}
