package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	opusbridge "github.com/wippyai/opus-bridge"
	"github.com/wippyai/opus-bridge/engine"
	"github.com/wippyai/opus-bridge/opus"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateConfigure modelState = iota
	stateRunning
)

type interactiveModel struct {
	err      error
	filename string
	eng      *engine.Engine
	memSize  uint32

	enc *opus.Encoder
	dec *opus.Decoder
	cfg opus.Config

	inputs   []textinput.Model
	focusIdx int
	state    modelState

	phase       float64
	frames      int
	concealed   int
	pcmBytes    int
	packetBytes int
	lastPacket  int
	lastDur     int
}

type loadedMsg struct {
	err     error
	eng     *engine.Engine
	memSize uint32
}

type stepMsg struct {
	err       error
	packetLen int
	pcmLen    int
	lastDur   int
	concealed bool
}

func newInteractiveModel(filename string) *interactiveModel {
	m := &interactiveModel{filename: filename, state: stateConfigure}

	fields := []struct {
		prompt      string
		placeholder string
	}{
		{"rate: ", "48000"},
		{"channels: ", "1"},
		{"application: ", "voip | audio | lowdelay"},
	}
	m.inputs = make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = f.prompt
		ti.Placeholder = f.placeholder
		ti.Width = 30
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadEngine
}

func (m *interactiveModel) loadEngine() tea.Msg {
	wasm, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	eng, err := engine.New(context.Background(), wasm)
	if err != nil {
		return loadedMsg{err: err}
	}
	var size uint32
	if sizer, ok := eng.Memory().(opusbridge.MemorySizer); ok {
		size = sizer.Size()
	}
	return loadedMsg{eng: eng, memSize: size}
}

func (m *interactiveModel) configure() error {
	cfg := opus.Config{}
	if v := m.inputs[0].Value(); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("bad rate %q", v)
		}
		cfg.SampleRate = rate
	}
	if v := m.inputs[1].Value(); v != "" {
		ch, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("bad channel count %q", v)
		}
		cfg.Channels = ch
	}
	if v := m.inputs[2].Value(); v != "" {
		app, err := parseApplication(v)
		if err != nil {
			return err
		}
		cfg.Application = app
	}

	ctx := context.Background()
	enc, err := opus.NewEncoder(ctx, m.eng, cfg)
	if err != nil {
		return err
	}
	dec, err := opus.NewDecoder(ctx, m.eng, cfg)
	if err != nil {
		return err
	}
	m.enc, m.dec, m.cfg = enc, dec, enc.Config()
	m.phase = 0
	m.frames, m.concealed, m.pcmBytes, m.packetBytes = 0, 0, 0, 0
	return nil
}

// step encodes one 20ms frame of a 440Hz tone and decodes it back.
func (m *interactiveModel) step() tea.Msg {
	ctx := context.Background()

	frameSamples := m.cfg.SampleRate / 50
	pcm := make([]int16, frameSamples*m.cfg.Channels)
	for i := 0; i < frameSamples; i++ {
		s := int16(math.Sin(m.phase) * 0.3 * math.MaxInt16)
		m.phase += 2 * math.Pi * 440 / float64(m.cfg.SampleRate)
		for ch := 0; ch < m.cfg.Channels; ch++ {
			pcm[i*m.cfg.Channels+ch] = s
		}
	}

	packet, err := m.enc.Encode(ctx, pcm)
	if err != nil {
		return stepMsg{err: err}
	}
	out, err := m.dec.DecodeInt16(ctx, packet)
	if err != nil {
		return stepMsg{err: err}
	}
	dur, err := m.dec.LastPacketDuration(ctx)
	if err != nil {
		return stepMsg{err: err}
	}
	return stepMsg{packetLen: len(packet), pcmLen: len(out) * 2, lastDur: dur}
}

// conceal simulates one lost frame through the estimate path.
func (m *interactiveModel) conceal() tea.Msg {
	ctx := context.Background()
	out, err := m.dec.DecodeInt16(ctx, nil)
	if err != nil {
		return stepMsg{err: err}
	}
	dur, err := m.dec.LastPacketDuration(ctx)
	if err != nil {
		return stepMsg{err: err}
	}
	return stepMsg{pcmLen: len(out) * 2, lastDur: dur, concealed: true}
}

func (m *interactiveModel) close() {
	if m.enc != nil {
		m.enc.Destroy()
	}
	if m.dec != nil {
		m.dec.Destroy()
	}
	if m.eng != nil {
		m.eng.Close(context.Background())
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit

		case "enter":
			if m.state == stateConfigure {
				if m.eng == nil {
					return m, nil
				}
				if err := m.configure(); err != nil {
					m.err = err
					return m, nil
				}
				m.err = nil
				m.state = stateRunning
				return m, nil
			}
			return m, m.step

		case " ":
			if m.state == stateRunning {
				return m, m.step
			}

		case "c":
			if m.state == stateRunning {
				return m, m.conceal
			}

		case "tab":
			if m.state == stateConfigure {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			if m.state == stateRunning {
				m.enc.Destroy()
				m.dec.Destroy()
				m.enc, m.dec = nil, nil
				m.state = stateConfigure
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.eng = msg.eng
		m.memSize = msg.memSize

	case stepMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.frames++
		m.pcmBytes += msg.pcmLen
		m.packetBytes += msg.packetLen
		m.lastPacket = msg.packetLen
		m.lastDur = msg.lastDur
		if msg.concealed {
			m.concealed++
		}
	}

	if m.state == stateConfigure {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Opus Bridge"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if m.eng == nil && m.err == nil {
		b.WriteString("Loading engine module...")
		return b.String()
	}

	switch m.state {
	case stateConfigure:
		if m.memSize > 0 {
			b.WriteString(labelStyle.Render("engine memory: "))
			b.WriteString(fmt.Sprintf("%d KB\n\n", m.memSize/1024))
		}
		b.WriteString("Configure the codec (blank keeps defaults):\n\n")
		for i := range m.inputs {
			b.WriteString(m.inputs[i].View())
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter start • q quit"))

	case stateRunning:
		b.WriteString(fmt.Sprintf("%s %dHz, %d channel(s)\n\n",
			labelStyle.Render("tone round trip:"), m.cfg.SampleRate, m.cfg.Channels))
		b.WriteString(fmt.Sprintf("frames:       %s\n", statStyle.Render(strconv.Itoa(m.frames))))
		b.WriteString(fmt.Sprintf("concealed:    %s\n", statStyle.Render(strconv.Itoa(m.concealed))))
		b.WriteString(fmt.Sprintf("pcm bytes:    %s\n", statStyle.Render(strconv.Itoa(m.pcmBytes))))
		b.WriteString(fmt.Sprintf("packet bytes: %s\n", statStyle.Render(strconv.Itoa(m.packetBytes))))
		if m.pcmBytes > 0 {
			ratio := float64(m.packetBytes) / float64(m.pcmBytes)
			b.WriteString(fmt.Sprintf("ratio:        %s\n", statStyle.Render(fmt.Sprintf("%.3f", ratio))))
		}
		b.WriteString(fmt.Sprintf("last packet:  %s\n", statStyle.Render(fmt.Sprintf("%d bytes, %d samples", m.lastPacket, m.lastDur))))
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/space encode frame • c conceal loss • esc reconfigure • q quit"))
	}

	return b.String()
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newInteractiveModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
