package handler

import "github.com/gofiber/fiber/v2"

// Welcome is the root endpoint.
func Welcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Welcome to the Soda Machine API! Try /interface to talk to the machine.",
	})
}

// Interface serves a minimal HTML page that posts free text to /interact/.
func Interface(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(interfacePage)
}

const interfacePage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Soda Machine</title>
</head>
<body style="font-family:sans-serif; max-width:600px; margin:auto; padding:2rem;">
    <h1>Soda Machine</h1>
    <p>Type your request in plain language (e.g. "I want to buy 3 Coca-Cola"):</p>
    <input type="text" id="msg" placeholder="e.g. I want 2 Guaraná" style="width:100%; padding:8px;" />
    <button onclick="send()" style="margin-top:10px; padding:8px 16px;">Send</button>
    <pre id="reply" style="background:#f4f4f4; padding:1rem; margin-top:2rem;"></pre>
    <script>
        async function send() {
            const msg = document.getElementById("msg").value;
            const out = document.getElementById("reply");
            const r = await fetch("/interact/", {
                method: "POST",
                headers: { "Content-Type": "application/json" },
                body: JSON.stringify({ message: msg })
            });
            const data = await r.json();
            out.textContent = JSON.stringify(data, null, 2);
        }
    </script>
</body>
</html>
`
