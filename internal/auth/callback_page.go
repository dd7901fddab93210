package auth

// callbackPageHTML is served to the browser after the redirect lands,
// regardless of whether the provider sent a code or an error. The outcome is
// surfaced on the CLI, not in the browser.
const callbackPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>guildexport</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #2b2d31;
            color: #f2f3f5;
        }
        .card {
            text-align: center;
            background: #313338;
            padding: 2.5rem 3rem;
            border-radius: 8px;
        }
        p { color: #b5bac1; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Authentication received</h1>
        <p>You may close this window and return to the terminal.</p>
    </div>
</body>
</html>`
