// Package menu draws a keyboard-driven command menu over a tcell screen
package menu

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Menu represents a menu system
type Menu struct {
	mu       sync.Mutex
	items    []MenuItem
	selected int
	visible  bool
	width    int
	height   int
	title    string

	// Callbacks
	onClose func()
	onError func(error)
}

// MenuItem represents a single menu item
type MenuItem struct {
	Label     string
	Shortcut  string
	Action    func() error
	Enabled   bool
	Separator bool
}

// NewMenu creates a new menu
func NewMenu(title string) *Menu {
	m := &Menu{
		title: title,
		items: make([]MenuItem, 0),
	}
	m.updateDimensions()
	return m
}

// AddItem adds a menu item
func (m *Menu) AddItem(label, shortcut string, action func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = append(m.items, MenuItem{
		Label:    label,
		Shortcut: shortcut,
		Action:   action,
		Enabled:  true,
	})
	m.updateDimensions()
}

// AddSeparator adds a separator line
func (m *Menu) AddSeparator() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = append(m.items, MenuItem{Separator: true})
	m.updateDimensions()
}

// Show makes the menu visible with the first usable item selected
func (m *Menu) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.visible = true
	m.selected = -1
	m.moveSelection(1)
}

// Hide hides the menu
func (m *Menu) Hide() {
	m.mu.Lock()
	wasVisible := m.visible
	m.visible = false
	onClose := m.onClose
	m.mu.Unlock()

	if wasVisible && onClose != nil {
		onClose()
	}
}

// IsVisible returns whether the menu is visible
func (m *Menu) IsVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Selected returns the index of the highlighted item
func (m *Menu) Selected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Draw paints the menu centred on screen. It does not call Show on the screen.
func (m *Menu) Draw(screen tcell.Screen) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.visible {
		return
	}

	screenWidth, screenHeight := screen.Size()
	x0 := max((screenWidth-m.width)/2, 0)
	y0 := max((screenHeight-m.height)/2, 0)

	style := tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	selectedStyle := tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	disabledStyle := style.Foreground(tcell.ColorGray)

	m.drawBorder(screen, x0, y0, style)

	y := y0 + 1
	if m.title != "" {
		titleX := x0 + (m.width-runewidth.StringWidth(m.title))/2
		drawText(screen, titleX, y, m.title, style.Bold(true))
		y++
		m.hline(screen, x0, y, style)
		y++
	}

	for i, item := range m.items {
		if item.Separator {
			m.hline(screen, x0, y, style)
			y++
			continue
		}

		itemStyle := style
		if !item.Enabled {
			itemStyle = disabledStyle
		} else if i == m.selected {
			itemStyle = selectedStyle
		}

		for x := x0 + 1; x < x0+m.width-1; x++ {
			screen.SetContent(x, y, ' ', nil, itemStyle)
		}
		drawText(screen, x0+2, y, item.Label, itemStyle)
		if item.Shortcut != "" {
			drawText(screen, x0+m.width-runewidth.StringWidth(item.Shortcut)-2, y, item.Shortcut, itemStyle)
		}
		y++
	}
}

// HandleKey processes keyboard input and reports whether the menu used it.
// A hidden menu uses nothing.
func (m *Menu) HandleKey(ev *tcell.EventKey) bool {
	m.mu.Lock()
	if !m.visible {
		m.mu.Unlock()
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlT:
		m.mu.Unlock()
		m.Hide()
		return true

	case tcell.KeyUp:
		m.moveSelection(-1)
		m.mu.Unlock()
		return true

	case tcell.KeyDown, tcell.KeyTab:
		m.moveSelection(1)
		m.mu.Unlock()
		return true

	case tcell.KeyEnter:
		index := m.selected
		m.mu.Unlock()
		m.activate(index)
		return true

	case tcell.KeyRune:
		for i, item := range m.items {
			if item.Enabled && !item.Separator && item.Shortcut == string(ev.Rune()) {
				m.mu.Unlock()
				m.activate(i)
				return true
			}
		}
	}

	m.mu.Unlock()
	// Swallow everything else while open
	return true
}

// moveSelection moves the selection up or down, skipping separators and
// disabled items
func (m *Menu) moveSelection(direction int) {
	itemCount := len(m.items)
	if itemCount == 0 {
		m.selected = -1
		return
	}

	next := m.selected
	for range itemCount {
		next = (next + direction + itemCount) % itemCount
		if !m.items[next].Separator && m.items[next].Enabled {
			m.selected = next
			return
		}
	}
}

// activate runs the item at index and closes the menu
func (m *Menu) activate(index int) {
	m.mu.Lock()
	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return
	}
	item := m.items[index]
	onError := m.onError
	m.mu.Unlock()

	if !item.Enabled || item.Separator {
		return
	}

	m.Hide()
	if item.Action == nil {
		return
	}
	if err := item.Action(); err != nil && onError != nil {
		onError(err)
	}
}

func (m *Menu) drawBorder(screen tcell.Screen, x0, y0 int, style tcell.Style) {
	right, bottom := x0+m.width-1, y0+m.height-1

	screen.SetContent(x0, y0, '┌', nil, style)
	screen.SetContent(right, y0, '┐', nil, style)
	screen.SetContent(x0, bottom, '└', nil, style)
	screen.SetContent(right, bottom, '┘', nil, style)
	for x := x0 + 1; x < right; x++ {
		screen.SetContent(x, y0, '─', nil, style)
		screen.SetContent(x, bottom, '─', nil, style)
	}

	for y := y0 + 1; y < bottom; y++ {
		screen.SetContent(x0, y, '│', nil, style)
		screen.SetContent(right, y, '│', nil, style)
		for x := x0 + 1; x < right; x++ {
			screen.SetContent(x, y, ' ', nil, style)
		}
	}
}

func (m *Menu) hline(screen tcell.Screen, x0, y int, style tcell.Style) {
	for x := x0 + 1; x < x0+m.width-1; x++ {
		screen.SetContent(x, y, '─', nil, style)
	}
}

// drawText draws text at the specified position
func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, ch := range text {
		screen.SetContent(x, y, ch, nil, style)
		x += max(runewidth.RuneWidth(ch), 1)
	}
}

// updateDimensions updates menu dimensions based on items
func (m *Menu) updateDimensions() {
	maxWidth := runewidth.StringWidth(m.title) + 4

	for _, item := range m.items {
		if !item.Separator {
			width := runewidth.StringWidth(item.Label) + runewidth.StringWidth(item.Shortcut) + 8
			if width > maxWidth {
				maxWidth = width
			}
		}
	}

	m.width = maxWidth
	m.height = len(m.items) + 2 // Items + borders
	if m.title != "" {
		m.height += 2 // Title and separator
	}
}

// SetOnClose sets the callback for when menu closes
func (m *Menu) SetOnClose(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = callback
}

// SetOnError sets the callback for errors returned by item actions
func (m *Menu) SetOnError(callback func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = callback
}

// EnableItem enables or disables a menu item
func (m *Menu) EnableItem(index int, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index >= 0 && index < len(m.items) {
		m.items[index].Enabled = enabled
	}
}

// Size returns the outer width and height of the menu box
func (m *Menu) Size() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height
}
