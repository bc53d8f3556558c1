package research

// dismissPopupsScript clicks common cookie/consent/newsletter close buttons
// and removes fixed overlays. It returns the number of elements handled.
const dismissPopupsScript = `() => {
	let handled = 0;
	const buttonPatterns = [/^accept( all)?( cookies)?$/i, /^agree$/i, /^i agree$/i, /^got it$/i, /^ok(ay)?$/i,
		/^allow( all)?$/i, /^close$/i, /^no,? thanks$/i, /^dismiss$/i, /^continue$/i, /^reject( all)?$/i];
	for (const el of document.querySelectorAll('button, [role="button"], a')) {
		const label = (el.innerText || el.getAttribute('aria-label') || '').trim();
		if (label.length > 0 && label.length < 30 && buttonPatterns.some(p => p.test(label))) {
			try { el.click(); handled++; } catch (e) {}
		}
	}
	const overlaySelectors = ['[id*="cookie"]', '[class*="cookie"]', '[id*="consent"]', '[class*="consent"]',
		'[class*="modal"]', '[class*="popup"]', '[class*="overlay"]', '[class*="newsletter"]', '[aria-modal="true"]'];
	for (const el of document.querySelectorAll(overlaySelectors.join(','))) {
		const style = window.getComputedStyle(el);
		if (style.position === 'fixed' || style.position === 'sticky') {
			el.remove();
			handled++;
		}
	}
	document.body && (document.body.style.overflow = 'auto');
	return String(handled);
}`

// extractContentScript returns the page title, visible main text, full
// markup and any declared publish time as a JSON string.
const extractContentScript = `() => {
	const pick = (sel) => { const el = document.querySelector(sel); return el ? el.getAttribute('content') : null; };
	const candidates = ['article', 'main', '[role="main"]', '[itemprop="articleBody"]', '.post-content', '.entry-content', '.article-content', '#content'];
	let root = null;
	for (const sel of candidates) {
		const el = document.querySelector(sel);
		if (el && el.innerText && el.innerText.trim().length > 200) { root = el; break; }
	}
	if (!root) root = document.body;
	const clone = root ? root.cloneNode(true) : null;
	if (clone) {
		clone.querySelectorAll('script, style, noscript, iframe, svg, nav, header, footer, aside, form, button').forEach(n => n.remove());
	}
	const text = clone ? (clone.innerText || clone.textContent || '') : '';
	return JSON.stringify({
		title: document.title || '',
		url: location.href,
		text: text.replace(/\n{3,}/g, '\n\n').trim(),
		html: document.documentElement ? document.documentElement.outerHTML : '',
		published: pick('meta[property="article:published_time"]') || pick('meta[itemprop="datePublished"]') || ''
	});
}`
