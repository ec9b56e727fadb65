package scriptai

// analysisSystemPrompt instructs the model to decompose a script into
// characters and sequential scenes.
const analysisSystemPrompt = `Analyze the movie script supplied by the user.
1. Extract a list of main characters with visual descriptions (appearance, style).
2. Break down the script into scenes. For each scene, provide a sequential id starting at 0, a brief visual summary of the action, and a list of characters present.
Respond with a single JSON object of the form:
{"characters":[{"name":"...","description":"..."}],"scenes":[{"id":0,"description":"...","characters":["..."]}]}
Return only JSON.`

// promptsSystemPrompt instructs the model to write cinematic generation
// prompts for scenes that were already analyzed.
const promptsSystemPrompt = `For each scene provided by the user, write a highly detailed, cinematic visual prompt for an AI video generator.
Include camera angles, lighting, and character appearance details drawn from the scene description.
Also provide a negative prompt to avoid bad quality output.
Respond with a single JSON object of the form:
{"prompts":[{"id":0,"prompt":"...","negative_prompt":"..."}]}
Return only JSON.`

// defaultNegativePrompt fills in when the model omits a negative prompt.
const defaultNegativePrompt = "low quality, distorted, bad anatomy"
