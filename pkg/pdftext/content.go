package pdftext

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// kerningSpace is the TJ adjustment, in thousandths of an em, beyond which
// a gap is rendered as a space.
const kerningSpace = 200

type contentDocument struct {
	ctx *model.Context
}

func openContentDocument(path string) (*contentDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &contentDocument{ctx: ctx}, nil
}

func (d *contentDocument) PageCount() int {
	return d.ctx.PageCount
}

func (d *contentDocument) PageText(n int) (string, error) {
	r, err := pdfcpu.ExtractPageContent(d.ctx, n)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return decodeContentStream(data), nil
}

func (d *contentDocument) Close() error { return nil }

type operandKind int

const (
	operandNumber operandKind = iota
	operandString
	operandName
	operandArray
)

type operand struct {
	kind  operandKind
	num   float64
	text  string
	items []operand
}

// textCursor tracks the text line position and renders shown strings,
// starting a new output line whenever the baseline moves.
type textCursor struct {
	sb        strings.Builder
	x, y      float64
	leading   float64
	lastX     float64
	lastY     float64
	started   bool
	lineBreak bool
}

func (c *textCursor) nextLine() {
	c.y -= c.leading
	c.lineBreak = true
}

func (c *textCursor) show(s string) {
	if s == "" {
		return
	}
	if c.started {
		switch {
		case c.lineBreak || math.Abs(c.y-c.lastY) > 1:
			c.sb.WriteByte('\n')
		case c.x != c.lastX && !strings.HasSuffix(c.sb.String(), " ") && !strings.HasPrefix(s, " "):
			c.sb.WriteByte(' ')
		}
	}
	c.sb.WriteString(s)
	c.lastX, c.lastY = c.x, c.y
	c.started = true
	c.lineBreak = false
}

func (c *textCursor) apply(op string, args []operand) {
	num := func(i int) float64 {
		if i < len(args) && args[i].kind == operandNumber {
			return args[i].num
		}
		return 0
	}
	last := func() operand {
		if len(args) == 0 {
			return operand{}
		}
		return args[len(args)-1]
	}

	switch op {
	case "BT":
		c.x, c.y = 0, 0
	case "Td":
		c.x += num(0)
		c.y += num(1)
	case "TD":
		c.x += num(0)
		c.y += num(1)
		c.leading = -num(1)
	case "Tm":
		c.x, c.y = num(4), num(5)
	case "TL":
		c.leading = num(0)
	case "T*":
		c.nextLine()
	case "Tj":
		c.show(decodeText(last().text))
	case "'", `"`:
		c.nextLine()
		c.show(decodeText(last().text))
	case "TJ":
		var sb strings.Builder
		for _, item := range last().items {
			switch item.kind {
			case operandString:
				sb.WriteString(decodeText(item.text))
			case operandNumber:
				if -item.num > kerningSpace {
					sb.WriteByte(' ')
				}
			}
		}
		c.show(sb.String())
	}
}

// decodeText maps single-byte font codes through WinAnsi, the encoding of
// the standard fonts.
func decodeText(raw string) string {
	s, err := charmap.Windows1252.NewDecoder().String(raw)
	if err != nil {
		return raw
	}
	return s
}

// decodeContentStream renders the text operators of a content stream.
func decodeContentStream(data []byte) string {
	var (
		cursor textCursor
		stack  []operand
		arrays [][]operand
	)

	push := func(o operand) {
		if n := len(arrays); n > 0 {
			arrays[n-1] = append(arrays[n-1], o)
			return
		}
		stack = append(stack, o)
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isWhite(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readLiteralString(data[i:])
			push(operand{kind: operandString, text: s})
			i += n
		case c == '<':
			if i+1 < len(data) && data[i+1] == '<' {
				i += 2
				continue
			}
			s, n := readHexString(data[i:])
			push(operand{kind: operandString, text: s})
			i += n
		case c == '>':
			i++
		case c == '[':
			arrays = append(arrays, nil)
			i++
		case c == ']':
			if n := len(arrays); n > 0 {
				items := arrays[n-1]
				arrays = arrays[:n-1]
				push(operand{kind: operandArray, items: items})
			}
			i++
		case c == '{' || c == '}' || c == ')':
			i++
		case c == '/':
			j := i + 1
			for j < len(data) && !isWhite(data[j]) && !isDelimiter(data[j]) {
				j++
			}
			push(operand{kind: operandName, text: string(data[i+1 : j])})
			i = j
		default:
			j := i
			for j < len(data) && !isWhite(data[j]) && !isDelimiter(data[j]) {
				j++
			}
			if j == i {
				j++
			}
			token := string(data[i:j])
			i = j

			if f, err := strconv.ParseFloat(token, 64); err == nil {
				push(operand{kind: operandNumber, num: f})
				continue
			}
			if token == "ID" {
				i = skipInlineImage(data, i)
			}
			cursor.apply(token, stack)
			stack = stack[:0]
			arrays = arrays[:0]
		}
	}
	return cursor.sb.String()
}

func readLiteralString(data []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for i < len(data) {
		c := data[i]
		switch c {
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		case '\\':
			i++
			if i >= len(data) {
				return sb.String(), i
			}
			e := data[i]
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case '\r':
				if i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

func readHexString(data []byte) (string, int) {
	end := 1
	for end < len(data) && data[end] != '>' {
		end++
	}
	digits := make([]byte, 0, end)
	for _, c := range data[1:end] {
		if !isWhite(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	decoded, err := hex.DecodeString(string(digits))
	if err != nil {
		decoded = nil
	}
	if end < len(data) {
		end++
	}
	return string(decoded), end
}

// skipInlineImage advances past inline image data up to the EI operator.
func skipInlineImage(data []byte, i int) int {
	for j := i; j+2 <= len(data); j++ {
		if data[j] == 'E' && data[j+1] == 'I' && j > 0 && isWhite(data[j-1]) &&
			(j+2 == len(data) || isWhite(data[j+2])) {
			return j + 2
		}
	}
	return len(data)
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
