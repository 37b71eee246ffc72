// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gesture_lock/internal/imu"
	"github.com/relabs-tech/gesture_lock/internal/sensors"
)

// RegisterDevice is a gyro whose registers can be inspected.
type RegisterDevice interface {
	ReadRegister(addr byte) (byte, error)
	WriteRegister(addr, value byte) error
}

// RegisterCmd is a request from the register debug page.
type RegisterCmd struct {
	Action  string `json:"action"` // get_map, read, read_all, write, export_config
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterResponse is sent back to the page.
type RegisterResponse struct {
	Type        string                 `json:"type"` // register_data, register_map, export_config, error
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
	Config      *RegisterConfigFile    `json:"config,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
}

// RegisterConfigFile is the exported register snapshot.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// RegisterDebugHandler serves register reads and writes over a websocket.
// Writes are limited to registers the map marks RW. The lock must not be
// running a session while registers are poked.
type RegisterDebugHandler struct {
	mu       sync.Mutex
	dev      RegisterDevice
	writable map[byte]bool
}

func NewRegisterDebugHandler(dev RegisterDevice) *RegisterDebugHandler {
	h := &RegisterDebugHandler{dev: dev, writable: map[byte]bool{}}
	for _, r := range sensors.L3GD20RegisterMap() {
		if r.Access == "RW" {
			h.writable[r.Address] = true
		}
	}
	return h
}

func (h *RegisterDebugHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(h.registerMap()); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(h.Handle(cmd)); err != nil {
			log.Printf("register_debug: write error: %v", err)
			return
		}
	}
}

// Handle executes one command.
func (h *RegisterDebugHandler) Handle(cmd RegisterCmd) RegisterResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch cmd.Action {
	case "get_map":
		return h.registerMap()
	case "read":
		return h.handleRead(cmd)
	case "read_all":
		return h.handleReadAll()
	case "write":
		return h.handleWrite(cmd)
	case "export_config":
		return h.handleExport()
	case "":
		return errorResponse("missing or invalid action field")
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
	}
}

func (h *RegisterDebugHandler) handleRead(cmd RegisterCmd) RegisterResponse {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %q", cmd.Address))
	}
	value, err := h.dev.ReadRegister(addr)
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (h *RegisterDebugHandler) readAll() (map[string]string, error) {
	values, err := sensors.DumpRegisters(h.dev)
	if err != nil {
		return nil, err
	}
	regs := make(map[string]string, len(values))
	for _, v := range values {
		regs[fmt.Sprintf("0x%02X", v.Address)] = fmt.Sprintf("0x%02X", v.Value)
	}
	return regs, nil
}

func (h *RegisterDebugHandler) handleReadAll() RegisterResponse {
	regs, err := h.readAll()
	if err != nil {
		return errorResponse(fmt.Sprintf("read all error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Registers: regs,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (h *RegisterDebugHandler) handleWrite(cmd RegisterCmd) RegisterResponse {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %q", cmd.Address))
	}
	value, err := parseHexByte(cmd.Value)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid value format: %q", cmd.Value))
	}
	if !h.writable[addr] {
		return errorResponse(fmt.Sprintf("register 0x%02X is not writable", addr))
	}
	if err := h.dev.WriteRegister(addr, value); err != nil {
		return errorResponse(fmt.Sprintf("write error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	}
}

func (h *RegisterDebugHandler) handleExport() RegisterResponse {
	regs, err := h.readAll()
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	now := time.Now()
	return RegisterResponse{
		Type:    "export_config",
		Message: "config exported",
		Config: &RegisterConfigFile{
			Version:   1,
			Device:    "l3gd20",
			Timestamp: now.Format(time.RFC3339),
			Registers: regs,
		},
		Filename: fmt.Sprintf("l3gd20_%s_registers.json", now.Format("20060102_150405")),
	}
}

func (h *RegisterDebugHandler) registerMap() RegisterResponse {
	return RegisterResponse{Type: "register_map", RegisterMap: sensors.L3GD20RegisterMap()}
}

func errorResponse(message string) RegisterResponse {
	return RegisterResponse{Type: "error", Message: message}
}

func parseHexByte(s string) (byte, error) {
	var b byte
	if _, err := fmt.Sscanf(s, "0x%X", &b); err != nil {
		return 0, err
	}
	return b, nil
}

// HandleGyroData serves one raw gyro reading as JSON.
func HandleGyroData(src imu.RawSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		raw, err := src.ReadRaw()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, raw)
	}
}
