package server

import (
	"fmt"
	"log"
	"net/http"
)

// TestPage serves a minimal HTML page for exercising the relay by hand:
// connect, send a nickname, then chat and run slash commands.
func (h *Handlers) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>latchat test</title>
    <style>
        body { font-family: monospace; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px;
                    overflow-y: scroll; margin: 10px 0; white-space: pre-wrap; }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
    </style>
</head>
<body>
    <h1>latchat</h1>
    <p>First message sets your nickname. Then /join a room and chat. /help lists commands.</p>
    <div id="messages"></div>
    <input type="text" id="input" placeholder="Type a message...">
    <button onclick="send()">Send</button>
    <script>
        const messages = document.getElementById('messages');
        const input = document.getElementById('input');
        const ws = new WebSocket('ws://' + location.host + '/ws');
        function show(line) {
            messages.textContent += line + '\n';
            messages.scrollTop = messages.scrollHeight;
        }
        ws.onopen = () => show('* connected');
        ws.onmessage = (e) => show(e.data);
        ws.onclose = () => show('* disconnected');
        function send() {
            if (input.value && ws.readyState === WebSocket.OPEN) {
                ws.send(input.value);
                input.value = '';
            }
        }
        input.addEventListener('keypress', (e) => { if (e.key === 'Enter') send(); });
    </script>
</body>
</html>`
